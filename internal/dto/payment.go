package dto

import "github.com/noah-isme/studio-adp-api/internal/models"

// CreateChargeRequest asks the tenant's active provider for a new charge.
type CreateChargeRequest struct {
	StudentID   string  `json:"student_id" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	DueDate     string  `json:"due_date" validate:"required,datetime=2006-01-02"`
	Description string  `json:"description" validate:"omitempty,max=500"`
}

// MarkPaidRequest records a manual confirmation.
type MarkPaidRequest struct {
	PaymentDate string `json:"payment_date" validate:"required,datetime=2006-01-02"`
	Method      string `json:"method" validate:"required,oneof=PIX BOLETO CREDIT_CARD CASH TRANSFER"`
}

// UpdatePaymentProviderRequest switches the tenant's provider.
type UpdatePaymentProviderRequest struct {
	Provider models.PaymentProviderKind `json:"provider" validate:"required,oneof=MOCK SANDBOX PRODUCTION"`
}
