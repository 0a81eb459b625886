package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Window anchor modes for attendance tokens.
const (
	AnchorIssuance = "issuance"
	AnchorSchedule = "schedule"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Attendance AttendanceConfig
	Payments   PaymentsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig tunes QR token issuance, redemption throttling and purging.
type AttendanceConfig struct {
	ValidBefore      time.Duration
	ValidAfter       time.Duration
	AnchorMode       string
	Timezone         string
	SuffixLength     int
	PurgeRetention   time.Duration
	PurgeInterval    time.Duration
	RedeemRateLimit  int
	RedeemRateWindow time.Duration
}

// PaymentsConfig configures the gateway client and the simulators.
type PaymentsConfig struct {
	GatewayBaseURL   string
	GatewayAPIKey    string
	SandboxBaseURL   string
	HTTPTimeout      time.Duration
	SimulatedLatency time.Duration
	SimulatedJitter  time.Duration
	RetryAttempts    int
	RetryDelay       time.Duration
	ProviderCacheTTL time.Duration
	DefaultProvider  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	anchor := strings.ToLower(strings.TrimSpace(v.GetString("ATTENDANCE_WINDOW_ANCHOR")))
	if anchor != AnchorSchedule {
		anchor = AnchorIssuance
	}
	suffix := v.GetInt("ATTENDANCE_TOKEN_SUFFIX_LENGTH")
	if suffix <= 0 {
		suffix = 6
	}
	cfg.Attendance = AttendanceConfig{
		ValidBefore:      parseDuration(v.GetString("ATTENDANCE_VALID_BEFORE"), 10*time.Minute),
		ValidAfter:       parseDuration(v.GetString("ATTENDANCE_VALID_AFTER"), 15*time.Minute),
		AnchorMode:       anchor,
		Timezone:         v.GetString("ATTENDANCE_TIMEZONE"),
		SuffixLength:     suffix,
		PurgeRetention:   parseDuration(v.GetString("ATTENDANCE_PURGE_RETENTION"), 7*24*time.Hour),
		PurgeInterval:    parseDuration(v.GetString("ATTENDANCE_PURGE_INTERVAL"), time.Hour),
		RedeemRateLimit:  v.GetInt("ATTENDANCE_REDEEM_RATE_LIMIT"),
		RedeemRateWindow: parseDuration(v.GetString("ATTENDANCE_REDEEM_RATE_WINDOW"), time.Minute),
	}

	attempts := v.GetInt("PAYMENTS_RETRY_ATTEMPTS")
	if attempts <= 0 {
		attempts = 1
	}
	cfg.Payments = PaymentsConfig{
		GatewayBaseURL:   strings.TrimRight(v.GetString("PAYMENTS_GATEWAY_URL"), "/"),
		GatewayAPIKey:    v.GetString("PAYMENTS_GATEWAY_API_KEY"),
		SandboxBaseURL:   strings.TrimRight(v.GetString("PAYMENTS_SANDBOX_URL"), "/"),
		HTTPTimeout:      parseDuration(v.GetString("PAYMENTS_HTTP_TIMEOUT"), 15*time.Second),
		SimulatedLatency: parseDuration(v.GetString("PAYMENTS_SIMULATED_LATENCY"), 300*time.Millisecond),
		SimulatedJitter:  parseDuration(v.GetString("PAYMENTS_SIMULATED_JITTER"), 200*time.Millisecond),
		RetryAttempts:    attempts,
		RetryDelay:       parseDuration(v.GetString("PAYMENTS_RETRY_DELAY"), 500*time.Millisecond),
		ProviderCacheTTL: parseDuration(v.GetString("PAYMENTS_PROVIDER_CACHE_TTL"), 30*time.Second),
		DefaultProvider:  strings.ToUpper(v.GetString("PAYMENTS_DEFAULT_PROVIDER")),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dance_studio")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_VALID_BEFORE", "10m")
	v.SetDefault("ATTENDANCE_VALID_AFTER", "15m")
	v.SetDefault("ATTENDANCE_WINDOW_ANCHOR", AnchorIssuance)
	v.SetDefault("ATTENDANCE_TIMEZONE", "UTC")
	v.SetDefault("ATTENDANCE_TOKEN_SUFFIX_LENGTH", 6)
	v.SetDefault("ATTENDANCE_PURGE_RETENTION", "168h")
	v.SetDefault("ATTENDANCE_PURGE_INTERVAL", "1h")
	v.SetDefault("ATTENDANCE_REDEEM_RATE_LIMIT", 10)
	v.SetDefault("ATTENDANCE_REDEEM_RATE_WINDOW", "1m")

	v.SetDefault("PAYMENTS_GATEWAY_URL", "https://api.asaas.com/v3")
	v.SetDefault("PAYMENTS_GATEWAY_API_KEY", "")
	v.SetDefault("PAYMENTS_SANDBOX_URL", "https://sandbox.asaas.com/api/v3")
	v.SetDefault("PAYMENTS_HTTP_TIMEOUT", "15s")
	v.SetDefault("PAYMENTS_SIMULATED_LATENCY", "300ms")
	v.SetDefault("PAYMENTS_SIMULATED_JITTER", "200ms")
	v.SetDefault("PAYMENTS_RETRY_ATTEMPTS", 1)
	v.SetDefault("PAYMENTS_RETRY_DELAY", "500ms")
	v.SetDefault("PAYMENTS_PROVIDER_CACHE_TTL", "30s")
	v.SetDefault("PAYMENTS_DEFAULT_PROVIDER", "MOCK")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
