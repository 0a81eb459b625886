package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

// AttendanceTokenRepository persists issued QR tokens.
type AttendanceTokenRepository struct {
	db *sqlx.DB
}

// NewAttendanceTokenRepository constructs the repository.
func NewAttendanceTokenRepository(db *sqlx.DB) *AttendanceTokenRepository {
	return &AttendanceTokenRepository{db: db}
}

// Create stores a freshly issued token.
func (r *AttendanceTokenRepository) Create(ctx context.Context, token *models.AttendanceToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO attendance_tokens (token, tenant_id, class_id, valid_from, valid_until, issued_by, created_at)
VALUES (:token, :tenant_id, :class_id, :valid_from, :valid_until, :issued_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create attendance token: %w", err)
	}
	return nil
}

// FindByToken looks a token up by exact string match within a tenant. Returns sql.ErrNoRows when absent.
func (r *AttendanceTokenRepository) FindByToken(ctx context.Context, tenantID, token string) (*models.AttendanceToken, error) {
	query := `SELECT token, tenant_id, class_id, valid_from, valid_until, issued_by, created_at
FROM attendance_tokens WHERE token = $1 AND tenant_id = $2`
	var stored models.AttendanceToken
	if err := r.db.GetContext(ctx, &stored, query, token, tenantID); err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeleteExpiredBefore purges tokens whose window closed before cutoff and returns how many were removed.
func (r *AttendanceTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_tokens WHERE valid_until < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge attendance tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge attendance tokens rows: %w", err)
	}
	return n, nil
}
