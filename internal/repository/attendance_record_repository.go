package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/pkg/database"
)

// AttendanceRecordRepository persists check-ins.
type AttendanceRecordRepository struct {
	db *sqlx.DB
}

// NewAttendanceRecordRepository constructs the repository.
func NewAttendanceRecordRepository(db *sqlx.DB) *AttendanceRecordRepository {
	return &AttendanceRecordRepository{db: db}
}

// ExistsForDay reports whether the student already checked in to the class on day.
func (r *AttendanceRecordRepository) ExistsForDay(ctx context.Context, studentID, classID string, day time.Time) (bool, error) {
	query := `SELECT 1 FROM attendance_records WHERE student_id = $1 AND class_id = $2 AND attendance_date = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, classID, day); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check attendance record: %w", err)
	}
	return true, nil
}

// Insert stores the record unless one already exists for (student, class, day).
// It reports false without error when the unique key was already taken.
func (r *AttendanceRecordRepository) Insert(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	query := `INSERT INTO attendance_records (id, tenant_id, student_id, class_id, attendance_date, marked_at, marked_by, device_fingerprint, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, class_id, attendance_date) DO NOTHING
RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query,
		record.ID, record.TenantID, record.StudentID, record.ClassID, record.AttendanceDate,
		record.MarkedAt, record.MarkedBy, record.DeviceFingerprint, record.UserAgent,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert attendance record: %w", err)
	}
	return true, nil
}

// ListByClassAndDate returns the roster of check-ins for a class on a day.
func (r *AttendanceRecordRepository) ListByClassAndDate(ctx context.Context, tenantID, classID string, day time.Time) ([]models.AttendanceRecordDetail, error) {
	query := `SELECT ar.id, ar.tenant_id, ar.student_id, ar.class_id, ar.attendance_date, ar.marked_at, ar.marked_by,
        ar.device_fingerprint, ar.user_agent, s.full_name AS student_name, c.name AS class_name
        FROM attendance_records ar
        JOIN students s ON s.id = ar.student_id
        JOIN classes c ON c.id = ar.class_id
        WHERE ar.tenant_id = $1 AND ar.class_id = $2 AND ar.attendance_date = $3
        ORDER BY ar.marked_at ASC`
	var rows []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, classID, day); err != nil {
		return nil, fmt.Errorf("list class attendance: %w", err)
	}
	return rows, nil
}

// ListByStudent returns a student's attendance history, newest first.
func (r *AttendanceRecordRepository) ListByStudent(ctx context.Context, tenantID string, filter models.AttendanceHistoryFilter) ([]models.AttendanceRecordDetail, int, error) {
	where := []string{"ar.tenant_id = $1", "ar.student_id = $2"}
	args := []interface{}{tenantID, filter.StudentID}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("ar.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ar.attendance_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ar.attendance_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := models.NormalisePage(filter.Page, filter.PageSize, 50, 200)
	offset := (page - 1) * size

	base := `FROM attendance_records ar
        JOIN students s ON s.id = ar.student_id
        JOIN classes c ON c.id = ar.class_id`
	query := fmt.Sprintf(`SELECT ar.id, ar.tenant_id, ar.student_id, ar.class_id, ar.attendance_date, ar.marked_at, ar.marked_by,
        ar.device_fingerprint, ar.user_agent, s.full_name AS student_name, c.name AS class_name
        %s WHERE %s ORDER BY ar.attendance_date DESC, ar.marked_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var rows []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list student attendance: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count student attendance: %w", err)
	}
	return rows, total, nil
}
