package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-adp-api/internal/dto"
	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/payment"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
)

type tenantSettingsRepository interface {
	Get(ctx context.Context, tenantID string) (*models.TenantSettings, error)
	UpsertPaymentProvider(ctx context.Context, tenantID string, provider models.PaymentProviderKind, actorID string) (*models.TenantSettings, error)
}

// SettingsService manages per-tenant switches.
type SettingsService struct {
	repo            tenantSettingsRepository
	cache           *CacheService
	defaultProvider models.PaymentProviderKind
	validator       *validator.Validate
	logger          *zap.Logger
}

// NewSettingsService constructs the settings service. cache may be nil.
func NewSettingsService(repo tenantSettingsRepository, cache *CacheService, defaultProvider models.PaymentProviderKind, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !defaultProvider.Valid() {
		defaultProvider = models.ProviderMock
	}
	return &SettingsService{repo: repo, cache: cache, defaultProvider: defaultProvider, validator: validate, logger: logger}
}

// PaymentProvider returns the tenant's setting, or the default when none is stored.
func (s *SettingsService) PaymentProvider(ctx context.Context, actor Actor) (*models.TenantSettings, error) {
	settings, err := s.repo.Get(ctx, actor.TenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.TenantSettings{TenantID: actor.TenantID, PaymentProvider: s.defaultProvider}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return settings, nil
}

// UpdatePaymentProvider switches the tenant's provider. The next factory lookup sees the new value.
func (s *SettingsService) UpdatePaymentProvider(ctx context.Context, actor Actor, req dto.UpdatePaymentProviderRequest) (*models.TenantSettings, error) {
	req.Provider = models.PaymentProviderKind(strings.ToUpper(strings.TrimSpace(string(req.Provider))))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "provider must be one of MOCK, SANDBOX, PRODUCTION")
	}
	settings, err := s.repo.UpsertPaymentProvider(ctx, actor.TenantID, req.Provider, actor.UserID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}
	if err := s.cache.Invalidate(ctx, payment.ProviderCacheKey(actor.TenantID)); err != nil {
		s.logger.Warn("provider cache not invalidated; change applies after ttl", zap.String("tenant_id", actor.TenantID), zap.Error(err))
	}
	s.logger.Info("payment provider changed", zap.String("tenant_id", actor.TenantID), zap.String("provider", string(req.Provider)), zap.String("actor", actor.UserID))
	return settings, nil
}
