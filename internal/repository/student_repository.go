package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

const studentColumns = "id, tenant_id, full_name, user_id, guardian_user_id, active, created_at, updated_at"

// StudentRepository reads student rows and their account links.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns the student or sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Student, error) {
	var student models.Student
	query := "SELECT " + studentColumns + " FROM students WHERE tenant_id = $1 AND id = $2"
	if err := r.db.GetContext(ctx, &student, query, tenantID, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListLinkedToUser returns the active students an account may act for: its own student row
// (student logins) and every student it is guardian of.
func (r *StudentRepository) ListLinkedToUser(ctx context.Context, tenantID, userID string) ([]models.Student, error) {
	query := "SELECT " + studentColumns + ` FROM students
        WHERE tenant_id = $1 AND active = TRUE AND (user_id = $2 OR guardian_user_id = $2)
        ORDER BY full_name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, tenantID, userID); err != nil {
		return nil, fmt.Errorf("list linked students: %w", err)
	}
	return students, nil
}
