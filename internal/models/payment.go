package models

import "time"

// PaymentProviderKind selects which gateway implementation serves a tenant.
type PaymentProviderKind string

const (
	ProviderMock       PaymentProviderKind = "MOCK"
	ProviderSandbox    PaymentProviderKind = "SANDBOX"
	ProviderProduction PaymentProviderKind = "PRODUCTION"
)

// Valid reports whether the kind is a supported provider.
func (k PaymentProviderKind) Valid() bool {
	switch k {
	case ProviderMock, ProviderSandbox, ProviderProduction:
		return true
	default:
		return false
	}
}

// ChargeStatus is the normalised status across providers.
type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusPaid      ChargeStatus = "paid"
	ChargeStatusOverdue   ChargeStatus = "overdue"
	ChargeStatusCancelled ChargeStatus = "cancelled"
)

// Valid reports whether the status is known.
func (s ChargeStatus) Valid() bool {
	switch s {
	case ChargeStatusPending, ChargeStatusPaid, ChargeStatusOverdue, ChargeStatusCancelled:
		return true
	default:
		return false
	}
}

// Final reports whether no later provider status may replace s.
func (s ChargeStatus) Final() bool {
	return s == ChargeStatusPaid || s == ChargeStatusCancelled
}

// Payment is the local ledger row tracking a charge created at a provider.
type Payment struct {
	ID                string              `db:"id" json:"id"`
	TenantID          string              `db:"tenant_id" json:"tenant_id"`
	StudentID         string              `db:"student_id" json:"student_id"`
	Amount            float64             `db:"amount" json:"amount"`
	DueDate           time.Time           `db:"due_date" json:"due_date"`
	Description       *string             `db:"description" json:"description,omitempty"`
	Provider          PaymentProviderKind `db:"provider" json:"provider"`
	ExternalID        string              `db:"external_id" json:"external_id"`
	ExternalReference string              `db:"external_reference" json:"external_reference"`
	Status            ChargeStatus        `db:"status" json:"status"`
	PaidAt            *time.Time          `db:"paid_at" json:"paid_at,omitempty"`
	PaymentMethod     *string             `db:"payment_method" json:"payment_method,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updated_at"`
}

// PaymentFilter scopes ledger listings.
type PaymentFilter struct {
	StudentID string
	Status    ChargeStatus
	Page      int
	PageSize  int
}
