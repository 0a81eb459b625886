package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

// EnrollmentRepository reads class memberships.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ExistsActive checks whether the student has an active enrollment in the class.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, tenantID, studentID, classID string) (bool, error) {
	query := "SELECT 1 FROM enrollments WHERE tenant_id = $1 AND student_id = $2 AND class_id = $3 AND status = $4 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, tenantID, studentID, classID, models.EnrollmentStatusActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}
