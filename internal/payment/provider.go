// Package payment abstracts the payment gateway behind a single Provider interface.
// Three variants exist: in-memory Mock and Sandbox simulators and the HTTP Gateway client.
// The active variant is chosen per tenant by Factory.
package payment

import (
	"context"
	"time"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

// Provider creates charges and tracks their status at a payment backend.
type Provider interface {
	// Kind identifies the variant.
	Kind() models.PaymentProviderKind
	// CreateCharge registers a charge. The returned Charge always carries a non-empty ExternalReference.
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	// GetStatus returns the current status of the charge identified by the provider id.
	GetStatus(ctx context.Context, reference string) (*Status, error)
	// MarkPaid records a manual confirmation. Callers persist the resulting status themselves.
	MarkPaid(ctx context.Context, reference string, paidAt time.Time, method string) error
}

// ChargeRequest is the provider-neutral create-charge input.
type ChargeRequest struct {
	CustomerReference string
	Value             float64
	DueDate           time.Time
	Description       string
	// ExternalReference correlates the charge with the local ledger. Generated when empty.
	ExternalReference string
}

// Charge is what a provider returns for a created charge.
type Charge struct {
	ID                string              `json:"id"`
	CustomerReference string              `json:"customer_reference"`
	Value             float64             `json:"value"`
	DueDate           time.Time           `json:"due_date"`
	Description       string              `json:"description,omitempty"`
	ExternalReference string              `json:"external_reference"`
	Status            models.ChargeStatus `json:"status"`
	InvoiceURL        string              `json:"invoice_url,omitempty"`
}

// Status is the provider's view of a charge.
type Status struct {
	ID            string              `json:"id"`
	Status        models.ChargeStatus `json:"status"`
	PaidDate      *time.Time          `json:"paid_date,omitempty"`
	PaymentMethod string              `json:"payment_method,omitempty"`
}

// Observer receives one callback per provider operation.
type Observer interface {
	ObserveProviderCall(kind models.PaymentProviderKind, operation string, err error, duration time.Duration)
}

const (
	OpCreateCharge = "create_charge"
	OpGetStatus    = "get_status"
	OpMarkPaid     = "mark_paid"
)

const dateLayout = "2006-01-02"
