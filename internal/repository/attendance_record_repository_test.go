package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

func sampleRecord() *models.AttendanceRecord {
	now := time.Date(2024, 5, 1, 18, 5, 0, 0, time.UTC)
	return &models.AttendanceRecord{
		TenantID:       "t1",
		StudentID:      "stu-a",
		ClassID:        "ballet-101",
		AttendanceDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		MarkedAt:       now,
		MarkedBy:       "guardian-1",
	}
}

func TestAttendanceRecordRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRecordRepository(db)

	rec := sampleRecord()
	mock.ExpectQuery("INSERT INTO attendance_records .* ON CONFLICT \\(student_id, class_id, attendance_date\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), "t1", "stu-a", "ballet-101", rec.AttendanceDate, rec.MarkedAt, "guardian-1", nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1"))

	inserted, err := repo.Insert(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRecordRepositoryInsertConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRecordRepository(db)

	mock.ExpectQuery("INSERT INTO attendance_records").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	inserted, err := repo.Insert(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.False(t, inserted)

	mock.ExpectQuery("INSERT INTO attendance_records").WillReturnError(&pq.Error{Code: "23505"})
	inserted, err = repo.Insert(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.False(t, inserted)

	mock.ExpectQuery("INSERT INTO attendance_records").WillReturnError(errors.New("connection reset"))
	_, err = repo.Insert(context.Background(), sampleRecord())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRecordRepositoryExistsForDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRecordRepository(db)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM attendance_records WHERE student_id = $1 AND class_id = $2 AND attendance_date = $3")).
		WithArgs("stu-a", "c1", day).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	exists, err := repo.ExistsForDay(context.Background(), "stu-a", "c1", day)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM attendance_records").WillReturnError(sql.ErrNoRows)
	exists, err = repo.ExistsForDay(context.Background(), "stu-a", "c1", day)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRecordRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRecordRepository(db)

	now := time.Now().UTC()
	cols := []string{"id", "tenant_id", "student_id", "class_id", "attendance_date", "marked_at", "marked_by", "device_fingerprint", "user_agent", "student_name", "class_name"}
	mock.ExpectQuery("SELECT ar.id, .* WHERE ar.tenant_id = \\$1 AND ar.student_id = \\$2 AND ar.class_id = \\$3 ORDER BY .* LIMIT 50 OFFSET 0").
		WithArgs("t1", "stu-a", "c1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("r1", "t1", "stu-a", "c1", now, now, "g1", nil, nil, "Ana", "Ballet"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("t1", "stu-a", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, total, err := repo.ListByStudent(context.Background(), "t1", models.AttendanceHistoryFilter{StudentID: "stu-a", ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0].StudentName)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
