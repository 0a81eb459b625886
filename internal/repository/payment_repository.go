package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

const paymentColumns = `id, tenant_id, student_id, amount, due_date, description, provider, external_id,
        external_reference, status, paid_at, payment_method, created_at, updated_at`

// PaymentRepository persists the local payment ledger.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a ledger row for a charge the provider accepted.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	now := time.Now().UTC()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	query := `INSERT INTO payments (id, tenant_id, student_id, amount, due_date, description, provider, external_id,
        external_reference, status, paid_at, payment_method, created_at, updated_at)
VALUES (:id, :tenant_id, :student_id, :amount, :due_date, :description, :provider, :external_id,
        :external_reference, :status, :paid_at, :payment_method, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID returns the ledger row or sql.ErrNoRows.
func (r *PaymentRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Payment, error) {
	var payment models.Payment
	query := "SELECT " + paymentColumns + " FROM payments WHERE tenant_id = $1 AND id = $2"
	if err := r.db.GetContext(ctx, &payment, query, tenantID, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus records a status transition observed at or reported to the provider.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, tenantID, id string, status models.ChargeStatus, paidAt *time.Time, method *string) error {
	query := `UPDATE payments SET status = $1, paid_at = COALESCE($2, paid_at), payment_method = COALESCE($3, payment_method), updated_at = $4
WHERE tenant_id = $5 AND id = $6`
	res, err := r.db.ExecContext(ctx, query, status, paidAt, method, time.Now().UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns ledger rows matching the filter, newest due date first.
func (r *PaymentRepository) List(ctx context.Context, tenantID string, filter models.PaymentFilter) ([]models.Payment, int, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := models.NormalisePage(filter.Page, filter.PageSize, 20, 100)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM payments WHERE %s ORDER BY due_date DESC, created_at DESC LIMIT %d OFFSET %d", paymentColumns, whereClause, size, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM payments WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}
