package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-adp-api/internal/dto"
	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/pkg/config"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
	"github.com/noah-isme/studio-adp-api/pkg/jobs"
	"github.com/noah-isme/studio-adp-api/pkg/qrcode"
)

type mockTokenRepo struct {
	tokens    map[string]models.AttendanceToken
	createErr error
	cutoff    time.Time
	purged    int64
}

func (m *mockTokenRepo) Create(ctx context.Context, token *models.AttendanceToken) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.tokens == nil {
		m.tokens = map[string]models.AttendanceToken{}
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockTokenRepo) FindByToken(ctx context.Context, tenantID, token string) (*models.AttendanceToken, error) {
	t, ok := m.tokens[token]
	if !ok || t.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *mockTokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	return m.purged, nil
}

type recordKey struct {
	student, class string
	day            time.Time
}

type mockRecordRepo struct {
	mu        sync.Mutex
	records   map[recordKey]models.AttendanceRecord
	insertErr error
	// raceOnInsert simulates a concurrent redemption winning between the pre-check and the insert.
	raceOnInsert bool
}

func (m *mockRecordRepo) ExistsForDay(ctx context.Context, studentID, classID string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[recordKey{studentID, classID, day}]
	return ok, nil
}

func (m *mockRecordRepo) Insert(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if m.raceOnInsert {
		return false, nil
	}
	if m.records == nil {
		m.records = map[recordKey]models.AttendanceRecord{}
	}
	key := recordKey{record.StudentID, record.ClassID, record.AttendanceDate}
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	record.ID = "rec-" + record.StudentID
	m.records[key] = *record
	return true, nil
}

func (m *mockRecordRepo) ListByClassAndDate(ctx context.Context, tenantID, classID string, day time.Time) ([]models.AttendanceRecordDetail, error) {
	var out []models.AttendanceRecordDetail
	for k, r := range m.records {
		if k.class == classID && k.day.Equal(day) {
			out = append(out, models.AttendanceRecordDetail{AttendanceRecord: r})
		}
	}
	return out, nil
}

func (m *mockRecordRepo) ListByStudent(ctx context.Context, tenantID string, filter models.AttendanceHistoryFilter) ([]models.AttendanceRecordDetail, int, error) {
	var out []models.AttendanceRecordDetail
	for k, r := range m.records {
		if k.student == filter.StudentID {
			out = append(out, models.AttendanceRecordDetail{AttendanceRecord: r})
		}
	}
	return out, len(out), nil
}

type mockAttendanceEnrollments struct {
	active map[string]bool
}

func (m *mockAttendanceEnrollments) ExistsActive(ctx context.Context, tenantID, studentID, classID string) (bool, error) {
	return m.active[studentID+"/"+classID], nil
}

type mockAttendanceStudents struct {
	byUser map[string][]models.Student
	byID   map[string]models.Student
}

func (m *mockAttendanceStudents) FindByID(ctx context.Context, tenantID, id string) (*models.Student, error) {
	st, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (m *mockAttendanceStudents) ListLinkedToUser(ctx context.Context, tenantID, userID string) ([]models.Student, error) {
	return m.byUser[userID], nil
}

type mockAttendanceClasses struct {
	classes map[string]models.Class
}

func (m *mockAttendanceClasses) FindByID(ctx context.Context, tenantID, id string) (*models.Class, error) {
	c, ok := m.classes[id]
	if !ok || c.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

type stubRenderer struct {
	lastToken string
	lastSheet qrcode.Sheet
}

func (r *stubRenderer) PNG(token string, size int) ([]byte, error) {
	r.lastToken = token
	return []byte("png"), nil
}

func (r *stubRenderer) PDF(sheet qrcode.Sheet) ([]byte, error) {
	r.lastSheet = sheet
	return []byte("%PDF"), nil
}

type attendanceFixture struct {
	svc      *AttendanceService
	tokens   *mockTokenRepo
	records  *mockRecordRepo
	enrolled *mockAttendanceEnrollments
	students *mockAttendanceStudents
	renderer *stubRenderer
	metrics  *MetricsService
	clock    time.Time
}

func newAttendanceFixture(t *testing.T, cfg config.AttendanceConfig) *attendanceFixture {
	t.Helper()
	schedule := "18:00"
	f := &attendanceFixture{
		tokens:   &mockTokenRepo{},
		records:  &mockRecordRepo{},
		enrolled: &mockAttendanceEnrollments{active: map[string]bool{"stu-1/class-1": true, "stu-2/class-1": true}},
		students: &mockAttendanceStudents{
			byUser: map[string][]models.Student{
				"guardian-1": {{ID: "stu-1", TenantID: "t1", FullName: "Ana"}},
				"guardian-2": {{ID: "stu-1", TenantID: "t1"}, {ID: "stu-2", TenantID: "t1"}},
				"guardian-3": {{ID: "stu-3", TenantID: "t1"}},
			},
			byID: map[string]models.Student{"stu-1": {ID: "stu-1", TenantID: "t1"}},
		},
		renderer: &stubRenderer{},
		metrics:  NewMetricsService(),
		clock:    time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
	}
	classes := &mockAttendanceClasses{classes: map[string]models.Class{
		"class-1":  {ID: "class-1", TenantID: "t1", Name: "Ballet I", ScheduleTime: &schedule, Active: true},
		"inactive": {ID: "inactive", TenantID: "t1", Name: "Old", Active: false},
	}}
	f.svc = NewAttendanceService(AttendanceServiceParams{
		Tokens:      f.tokens,
		Records:     f.records,
		Enrollments: f.enrolled,
		Students:    f.students,
		Classes:     classes,
		Renderer:    f.renderer,
		Metrics:     f.metrics,
		Config:      cfg,
	})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

var teacherActor = Actor{UserID: "teacher-1", TenantID: "t1", Role: models.RoleTeacher}

func guardian(id string) Actor {
	return Actor{UserID: id, TenantID: "t1", Role: models.RoleGuardian}
}

func TestIssueComputesDefaultWindowAroundIssuance(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})

	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Add(-10*time.Minute), token.ValidFrom)
	assert.Equal(t, f.clock.Add(15*time.Minute), token.ValidUntil)
	assert.Equal(t, 25*time.Minute, token.ValidUntil.Sub(token.ValidFrom))
	assert.Equal(t, "class-1", token.ClassID)
	assert.Equal(t, "teacher-1", token.IssuedBy)
	assert.Regexp(t, regexp.MustCompile(`^class-1-1714586400000-[0-9a-z]{6}$`), token.Token)
	assert.Contains(t, f.tokens.tokens, token.Token)
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
		require.NoError(t, err)
		assert.False(t, seen[token.Token])
		seen[token.Token] = true
	}
}

func TestIssueAnchorsOnScheduleWhenConfigured(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{AnchorMode: config.AnchorSchedule})
	f.clock = time.Date(2024, 5, 1, 17, 40, 0, 0, time.UTC)

	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)
	start := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, start.Add(-10*time.Minute), token.ValidFrom)
	assert.Equal(t, start.Add(15*time.Minute), token.ValidUntil)
}

func TestIssueRejectsUnknownClass(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})

	_, err := f.svc.Issue(context.Background(), teacherActor, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Issue(context.Background(), teacherActor, "inactive")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Issue(context.Background(), Actor{UserID: "x", TenantID: "other"}, "class-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestIssueSurfacesPersistenceFailure(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	f.tokens.createErr = errors.New("connection reset")

	_, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	assert.ErrorIs(t, err, appErrors.ErrPersistence)
}

func TestRedeemWindowBoundaries(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want error
	}{
		{"one second before window", time.Date(2024, 5, 1, 17, 49, 59, 0, time.UTC), appErrors.ErrTooEarly},
		{"window opens", time.Date(2024, 5, 1, 17, 50, 0, 0, time.UTC), nil},
		{"window closes", time.Date(2024, 5, 1, 18, 15, 0, 0, time.UTC), nil},
		{"one second after window", time.Date(2024, 5, 1, 18, 15, 1, 0, time.UTC), appErrors.ErrExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAttendanceFixture(t, config.AttendanceConfig{})
			token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
			require.NoError(t, err)

			f.clock = tc.at
			record, err := f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: token.Token})
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				assert.Empty(t, f.records.records)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "stu-1", record.StudentID)
			assert.Equal(t, "guardian-1", record.MarkedBy)
			assert.Equal(t, tc.at, record.MarkedAt)
			assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), record.AttendanceDate)
		})
	}
}

func TestRedeemSecondAttemptIsAlreadyMarked(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)

	_, err = f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: token.Token})
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Minute)
	second, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)
	require.NotEqual(t, token.Token, second.Token)

	_, err = f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: second.Token})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyMarked)
	_, err = f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: token.Token})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyMarked)
	assert.Len(t, f.records.records, 1)
}

func TestRedeemConflictOnInsertIsAlreadyMarked(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)
	f.records.raceOnInsert = true

	_, err = f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: token.Token})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyMarked)
}

func TestRedeemConcurrentCallsMarkOnce(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: token.Token})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, marked int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, appErrors.ErrAlreadyMarked):
			marked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, marked)
}

func TestRedeemFailureOrdering(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)

	_, err = f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: "class-1-0-nope"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidToken)

	// an unlinked account past the window still reports EXPIRED first
	f.clock = f.clock.Add(time.Hour)
	_, err = f.svc.Redeem(context.Background(), guardian("nobody"), dto.RedeemAttendanceRequest{Token: token.Token})
	assert.ErrorIs(t, err, appErrors.ErrExpired)

	f.clock = f.clock.Add(-time.Hour)
	_, err = f.svc.Redeem(context.Background(), guardian("nobody"), dto.RedeemAttendanceRequest{Token: token.Token})
	assert.ErrorIs(t, err, appErrors.ErrNoStudentLinked)

	_, err = f.svc.Redeem(context.Background(), guardian("guardian-3"), dto.RedeemAttendanceRequest{Token: token.Token})
	assert.ErrorIs(t, err, appErrors.ErrNotEnrolled)
}

func TestRedeemTokenFromOtherTenantIsInvalid(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)

	_, err = f.svc.Redeem(context.Background(), Actor{UserID: "guardian-1", TenantID: "t2", Role: models.RoleGuardian}, dto.RedeemAttendanceRequest{Token: token.Token})
	assert.ErrorIs(t, err, appErrors.ErrInvalidToken)
}

func TestRedeemStudentSelection(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)

	_, err = f.svc.Redeem(context.Background(), guardian("guardian-2"), dto.RedeemAttendanceRequest{Token: token.Token})
	assert.ErrorIs(t, err, appErrors.ErrStudentSelectionRequired)

	_, err = f.svc.Redeem(context.Background(), guardian("guardian-2"), dto.RedeemAttendanceRequest{Token: token.Token, StudentID: "stu-9"})
	assert.ErrorIs(t, err, appErrors.ErrNoStudentLinked)

	record, err := f.svc.Redeem(context.Background(), guardian("guardian-2"), dto.RedeemAttendanceRequest{Token: token.Token, StudentID: "stu-2"})
	require.NoError(t, err)
	assert.Equal(t, "stu-2", record.StudentID)

	record, err = f.svc.Redeem(context.Background(), guardian("guardian-2"), dto.RedeemAttendanceRequest{Token: token.Token, StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", record.StudentID)
}

func TestRedeemHashesFingerprint(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)

	record, err := f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{
		Token:             token.Token,
		DeviceFingerprint: "device-abc",
		UserAgent:         "Mozilla/5.0",
	})
	require.NoError(t, err)
	require.NotNil(t, record.DeviceFingerprint)
	assert.Len(t, *record.DeviceFingerprint, 64)
	assert.NotEqual(t, "device-abc", *record.DeviceFingerprint)
	require.NotNil(t, record.UserAgent)
	assert.Equal(t, "Mozilla/5.0", *record.UserAgent)
}

func TestRedeemRejectsEmptyToken(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	_, err := f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRedeemPersistenceFailure(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)
	f.records.insertErr = errors.New("disk full")

	_, err = f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: token.Token})
	assert.ErrorIs(t, err, appErrors.ErrPersistence)
}

func TestRedeemUsesStudioTimezoneForDay(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{Timezone: "America/Sao_Paulo"})
	f.clock = time.Date(2024, 5, 2, 1, 0, 0, 0, time.UTC)
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)

	record, err := f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: token.Token})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), record.AttendanceDate)
}

func TestListByClassAndHistory(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)
	_, err = f.svc.Redeem(context.Background(), guardian("guardian-1"), dto.RedeemAttendanceRequest{Token: token.Token})
	require.NoError(t, err)

	rows, err := f.svc.ListByClass(context.Background(), teacherActor, "class-1", "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = f.svc.ListByClass(context.Background(), teacherActor, "class-1", "01/05/2024")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	history, page, err := f.svc.StudentHistory(context.Background(), guardian("guardian-1"), models.AttendanceHistoryFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 1, page.TotalCount)

	_, _, err = f.svc.StudentHistory(context.Background(), guardian("guardian-3"), models.AttendanceHistoryFilter{StudentID: "stu-1"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, _, err = f.svc.StudentHistory(context.Background(), teacherActor, models.AttendanceHistoryFilter{StudentID: "stu-1"})
	require.NoError(t, err)
}

func TestQRRenderingUsesTokenVerbatim(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{})
	token, err := f.svc.Issue(context.Background(), teacherActor, "class-1")
	require.NoError(t, err)

	_, err = f.svc.QRCode(context.Background(), teacherActor, token.Token, 256)
	require.NoError(t, err)
	assert.Equal(t, token.Token, f.renderer.lastToken)

	_, err = f.svc.QRSheet(context.Background(), teacherActor, token.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ballet I", f.renderer.lastSheet.Title)
	assert.Equal(t, token.ValidUntil, f.renderer.lastSheet.ValidUntil)

	_, err = f.svc.QRCode(context.Background(), teacherActor, "unknown", 256)
	assert.ErrorIs(t, err, appErrors.ErrInvalidToken)
}

func TestPurgeExpired(t *testing.T) {
	f := newAttendanceFixture(t, config.AttendanceConfig{PurgeRetention: 48 * time.Hour})
	f.tokens.purged = 3

	n, err := f.svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, f.clock.Add(-48*time.Hour), f.tokens.cutoff)

	require.NoError(t, f.svc.HandlePurgeJob(context.Background(), PurgeJob(f.clock)))
	assert.Error(t, f.svc.HandlePurgeJob(context.Background(), jobs.Job{Type: "other"}))
}
