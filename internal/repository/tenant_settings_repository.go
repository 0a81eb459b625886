package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

// TenantSettingsRepository stores per-tenant switches.
type TenantSettingsRepository struct {
	db *sqlx.DB
}

// NewTenantSettingsRepository constructs the repository.
func NewTenantSettingsRepository(db *sqlx.DB) *TenantSettingsRepository {
	return &TenantSettingsRepository{db: db}
}

// Get returns the tenant's settings or sql.ErrNoRows.
func (r *TenantSettingsRepository) Get(ctx context.Context, tenantID string) (*models.TenantSettings, error) {
	var settings models.TenantSettings
	query := "SELECT tenant_id, payment_provider, updated_by, updated_at FROM tenant_settings WHERE tenant_id = $1"
	if err := r.db.GetContext(ctx, &settings, query, tenantID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpsertPaymentProvider sets the tenant's payment provider.
func (r *TenantSettingsRepository) UpsertPaymentProvider(ctx context.Context, tenantID string, provider models.PaymentProviderKind, actorID string) (*models.TenantSettings, error) {
	query := `INSERT INTO tenant_settings (tenant_id, payment_provider, updated_by, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id) DO UPDATE SET payment_provider = EXCLUDED.payment_provider, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING tenant_id, payment_provider, updated_by, updated_at`
	var stored models.TenantSettings
	if err := r.db.GetContext(ctx, &stored, query, tenantID, provider, actorID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("upsert payment provider: %w", err)
	}
	return &stored, nil
}
