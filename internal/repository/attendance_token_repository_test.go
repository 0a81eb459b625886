package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

func TestAttendanceTokenRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceTokenRepository(db)

	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	token := &models.AttendanceToken{Token: "ballet-101-1-abc", TenantID: "t1", ClassID: "ballet-101", ValidFrom: now.Add(-10 * time.Minute), ValidUntil: now.Add(15 * time.Minute), IssuedBy: "teacher-1"}
	mock.ExpectExec("INSERT INTO attendance_tokens").
		WithArgs(token.Token, "t1", "ballet-101", token.ValidFrom, token.ValidUntil, "teacher-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), token))
	assert.False(t, token.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceTokenRepositoryFindByToken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceTokenRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"token", "tenant_id", "class_id", "valid_from", "valid_until", "issued_by", "created_at"}).
		AddRow("tok", "t1", "c1", now, now.Add(time.Minute), "u1", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_tokens WHERE token = $1 AND tenant_id = $2")).
		WithArgs("tok", "t1").
		WillReturnRows(rows)

	token, err := repo.FindByToken(context.Background(), "t1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "c1", token.ClassID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_tokens WHERE token = $1 AND tenant_id = $2")).
		WithArgs("missing", "t1").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByToken(context.Background(), "t1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceTokenRepositoryDeleteExpiredBefore(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceTokenRepository(db)

	cutoff := time.Date(2024, 4, 24, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_tokens WHERE valid_until < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := repo.DeleteExpiredBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
