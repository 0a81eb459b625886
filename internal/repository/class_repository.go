package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

// ClassRepository reads classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns the class or sql.ErrNoRows.
func (r *ClassRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Class, error) {
	query := `SELECT id, tenant_id, name, teacher_id, schedule_time, active, created_at, updated_at
FROM classes WHERE tenant_id = $1 AND id = $2`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, tenantID, id); err != nil {
		return nil, err
	}
	return &class, nil
}
