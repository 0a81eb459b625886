package models

import "time"

// TenantSettings holds per-school switches consulted at call time.
type TenantSettings struct {
	TenantID        string              `db:"tenant_id" json:"tenant_id"`
	PaymentProvider PaymentProviderKind `db:"payment_provider" json:"payment_provider"`
	UpdatedBy       *string             `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}
