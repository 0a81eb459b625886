package payment

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/pkg/cache"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
)

// SettingsReader loads tenant settings. Missing rows are reported as sql.ErrNoRows.
type SettingsReader interface {
	Get(ctx context.Context, tenantID string) (*models.TenantSettings, error)
}

// SettingsCache caches the resolved provider kind per tenant. Get reports whether the key was found.
type SettingsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// FactoryConfig wires every variant the factory can build.
type FactoryConfig struct {
	DefaultProvider models.PaymentProviderKind
	CacheTTL        time.Duration

	Simulator      SimulatorConfig
	SandboxBaseURL string

	GatewayBaseURL string
	GatewayAPIKey  string
	HTTPTimeout    time.Duration
	// HTTPClient is only handed to the PRODUCTION variant.
	HTTPClient *http.Client

	RetryAttempts int
	RetryDelay    time.Duration
	Observer      Observer
	Logger        *zap.Logger
}

// Factory resolves the provider for a tenant from its current setting.
type Factory struct {
	settings SettingsReader
	cache    SettingsCache
	cfg      FactoryConfig
	logger   *zap.Logger
}

// NewFactory constructs a Factory. cache may be nil.
func NewFactory(settings SettingsReader, cache SettingsCache, cfg FactoryConfig) *Factory {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if !cfg.DefaultProvider.Valid() {
		cfg.DefaultProvider = models.ProviderMock
	}
	if cfg.Simulator.Logger == nil {
		cfg.Simulator.Logger = cfg.Logger
	}
	return &Factory{settings: settings, cache: cache, cfg: cfg, logger: cfg.Logger}
}

// ProviderCacheKey is the cache key holding a tenant's resolved provider kind.
func ProviderCacheKey(tenantID string) string {
	return cache.Key("tenant", tenantID, "payment_provider")
}

// ForTenant reads the tenant's payment_provider setting and builds the matching variant.
func (f *Factory) ForTenant(ctx context.Context, tenantID string) (Provider, error) {
	kind, err := f.KindFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return f.Build(kind)
}

// KindFor returns the configured provider kind for the tenant, falling back to the default
// when the tenant has no settings row.
func (f *Factory) KindFor(ctx context.Context, tenantID string) (models.PaymentProviderKind, error) {
	key := ProviderCacheKey(tenantID)
	if f.cache != nil && f.cfg.CacheTTL > 0 {
		var cached models.PaymentProviderKind
		hit, err := f.cache.Get(ctx, key, &cached)
		if err != nil {
			f.logger.Warn("provider cache lookup failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		if hit && cached.Valid() {
			return cached, nil
		}
	}

	kind := f.cfg.DefaultProvider
	settings, err := f.settings.Get(ctx, tenantID)
	switch {
	case err == nil:
		kind = models.PaymentProviderKind(strings.ToUpper(strings.TrimSpace(string(settings.PaymentProvider))))
	case errors.Is(err, sql.ErrNoRows):
	default:
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tenant settings")
	}
	if !kind.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown payment provider "+string(kind))
	}

	if f.cache != nil && f.cfg.CacheTTL > 0 {
		if err := f.cache.Set(ctx, key, kind, f.cfg.CacheTTL); err != nil {
			f.logger.Warn("provider cache store failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return kind, nil
}

// Build instantiates the variant for kind, decorated with instrumentation and the optional retry policy.
func (f *Factory) Build(kind models.PaymentProviderKind) (Provider, error) {
	var p Provider
	switch kind {
	case models.ProviderMock:
		p = NewMock(f.cfg.Simulator)
	case models.ProviderSandbox:
		sim := f.cfg.Simulator
		sim.InvoiceBaseURL = f.cfg.SandboxBaseURL
		p = NewSandbox(sim)
	case models.ProviderProduction:
		gw, err := NewGateway(GatewayConfig{
			BaseURL:    f.cfg.GatewayBaseURL,
			APIKey:     f.cfg.GatewayAPIKey,
			Timeout:    f.cfg.HTTPTimeout,
			HTTPClient: f.cfg.HTTPClient,
			Logger:     f.logger,
		})
		if err != nil {
			return nil, err
		}
		p = gw
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment provider "+string(kind))
	}

	if f.cfg.Observer != nil {
		p = Instrument(p, f.cfg.Observer)
	}
	if f.cfg.RetryAttempts > 1 {
		p = WithRetry(p, f.cfg.RetryAttempts, f.cfg.RetryDelay)
	}
	return p, nil
}
