package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/studio-adp-api/api/swagger"
	"github.com/noah-isme/studio-adp-api/internal/handler"
	"github.com/noah-isme/studio-adp-api/internal/middleware"
	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/payment"
	"github.com/noah-isme/studio-adp-api/internal/repository"
	"github.com/noah-isme/studio-adp-api/internal/service"
	"github.com/noah-isme/studio-adp-api/pkg/cache"
	"github.com/noah-isme/studio-adp-api/pkg/config"
	"github.com/noah-isme/studio-adp-api/pkg/database"
	"github.com/noah-isme/studio-adp-api/pkg/jobs"
	"github.com/noah-isme/studio-adp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/studio-adp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/studio-adp-api/pkg/middleware/requestid"
	"github.com/noah-isme/studio-adp-api/pkg/qrcode"
)

// @title Studio ADP API
// @version 1.0.0
// @description Attendance QR codes and payment charges for dance schools
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}

	// Redis is optional: without it rate limiting and the provider cache are disabled.
	var redisClient redis.Cmdable
	var redisPing handler.Pinger
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
	} else {
		defer client.Close()
		redisClient = client
		redisPing = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Payments.ProviderCacheTTL, logr, true)
	}

	tokenRepo := repository.NewAttendanceTokenRepository(db)
	recordRepo := repository.NewAttendanceRecordRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	settingsRepo := repository.NewTenantSettingsRepository(db)

	defaultProvider := models.PaymentProviderKind(cfg.Payments.DefaultProvider)
	factory := payment.NewFactory(settingsRepo, cacheSvc, factoryConfig(cfg, defaultProvider, metrics, logr))

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})
	attendanceSvc := service.NewAttendanceService(service.AttendanceServiceParams{
		Tokens:      tokenRepo,
		Records:     recordRepo,
		Enrollments: enrollmentRepo,
		Students:    studentRepo,
		Classes:     classRepo,
		Renderer:    qrcode.NewRenderer(),
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		Config:      cfg.Attendance,
	})
	paymentSvc := service.NewPaymentService(paymentRepo, studentRepo, factory, validate, logr)
	settingsSvc := service.NewSettingsService(settingsRepo, cacheSvc, defaultProvider, validate, logr)

	janitor := jobs.NewQueue("attendance-janitor", attendanceSvc.HandlePurgeJob, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
	})
	janitor.Start(ctx)
	janitor.Every(ctx, cfg.Attendance.PurgeInterval, service.PurgeJob)
	defer janitor.Stop()

	checks := map[string]handler.Pinger{"database": db.PingContext}
	if redisPing != nil {
		checks["redis"] = redisPing
	}

	r := newRouter(cfg, logr, routerDeps{
		auth:       authSvc,
		metrics:    metrics,
		redis:      redisClient,
		attendance: handler.NewAttendanceHandler(attendanceSvc, cfg.APIPrefix),
		payments:   handler.NewPaymentHandler(paymentSvc),
		settings:   handler.NewSettingsHandler(settingsSvc),
		ops:        handler.NewMetricsHandler(metrics, checks),
	})

	serve(ctx, logr, cfg, r)
}

func factoryConfig(cfg *config.Config, defaultProvider models.PaymentProviderKind, observer payment.Observer, logr *zap.Logger) payment.FactoryConfig {
	return payment.FactoryConfig{
		DefaultProvider: defaultProvider,
		CacheTTL:        cfg.Payments.ProviderCacheTTL,
		Simulator: payment.SimulatorConfig{
			Latency: cfg.Payments.SimulatedLatency,
			Jitter:  cfg.Payments.SimulatedJitter,
		},
		SandboxBaseURL: cfg.Payments.SandboxBaseURL,
		GatewayBaseURL: cfg.Payments.GatewayBaseURL,
		GatewayAPIKey:  cfg.Payments.GatewayAPIKey,
		HTTPTimeout:    cfg.Payments.HTTPTimeout,
		RetryAttempts:  cfg.Payments.RetryAttempts,
		RetryDelay:     cfg.Payments.RetryDelay,
		Observer:       observer,
		Logger:         logr,
	}
}

type routerDeps struct {
	auth       middleware.TokenValidator
	metrics    *service.MetricsService
	redis      redis.Cmdable
	attendance *handler.AttendanceHandler
	payments   *handler.PaymentHandler
	settings   *handler.SettingsHandler
	ops        *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.auth))

	api.POST("/classes/:id/attendance-tokens", staff, deps.attendance.Issue)
	api.GET("/classes/:id/attendance", staff, deps.attendance.ListByClass)
	api.GET("/attendance/tokens/:token/qr.png", staff, deps.attendance.QRCode)
	api.GET("/attendance/tokens/:token/sheet.pdf", staff, deps.attendance.Sheet)
	api.POST("/attendance/redeem",
		middleware.RequireRoles(models.RoleGuardian, models.RoleStudent),
		middleware.RateLimit(deps.redis, middleware.RateLimitConfig{
			Name:   "redeem",
			Limit:  cfg.Attendance.RedeemRateLimit,
			Window: cfg.Attendance.RedeemRateWindow,
			Logger: logr,
		}),
		deps.attendance.Redeem,
	)
	api.GET("/students/:id/attendance",
		middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleGuardian, models.RoleStudent),
		deps.attendance.StudentHistory,
	)

	settings := api.Group("/settings", admin)
	settings.GET("/payment-provider", deps.settings.GetPaymentProvider)
	settings.PUT("/payment-provider", deps.settings.UpdatePaymentProvider)

	payments := api.Group("/payments", admin)
	payments.POST("", deps.payments.Create)
	payments.GET("", deps.payments.List)
	payments.GET("/:id", deps.payments.Get)
	payments.POST("/:id/refresh", deps.payments.Refresh)
	payments.POST("/:id/mark-paid", deps.payments.MarkPaid)

	api.GET("/metrics/summary", admin, deps.ops.Snapshot)

	return r
}

func serve(ctx context.Context, logr *zap.Logger, cfg *config.Config, r http.Handler) {
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
