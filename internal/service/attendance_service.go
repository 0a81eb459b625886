package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/studio-adp-api/internal/dto"
	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/pkg/config"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
	"github.com/noah-isme/studio-adp-api/pkg/jobs"
	"github.com/noah-isme/studio-adp-api/pkg/qrcode"
)

// JobTypePurgeTokens is the job type enqueued by the token janitor.
const JobTypePurgeTokens = "attendance.purge_tokens"

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	maxUserAgent   = 512
	dateLayout     = "2006-01-02"
)

type attendanceTokenRepository interface {
	Create(ctx context.Context, token *models.AttendanceToken) error
	FindByToken(ctx context.Context, tenantID, token string) (*models.AttendanceToken, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type attendanceRecordRepository interface {
	ExistsForDay(ctx context.Context, studentID, classID string, day time.Time) (bool, error)
	Insert(ctx context.Context, record *models.AttendanceRecord) (bool, error)
	ListByClassAndDate(ctx context.Context, tenantID, classID string, day time.Time) ([]models.AttendanceRecordDetail, error)
	ListByStudent(ctx context.Context, tenantID string, filter models.AttendanceHistoryFilter) ([]models.AttendanceRecordDetail, int, error)
}

type attendanceEnrollmentRepository interface {
	ExistsActive(ctx context.Context, tenantID, studentID, classID string) (bool, error)
}

type attendanceStudentRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Student, error)
	ListLinkedToUser(ctx context.Context, tenantID, userID string) ([]models.Student, error)
}

type attendanceClassRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Class, error)
}

type attendanceMetrics interface {
	ObserveRedemption(err error)
	ObserveTokenIssued()
	ObserveTokensPurged(n int64)
}

type qrRenderer interface {
	PNG(token string, size int) ([]byte, error)
	PDF(sheet qrcode.Sheet) ([]byte, error)
}

// Actor is the authenticated account an operation runs for.
type Actor struct {
	UserID   string
	TenantID string
	Role     models.UserRole
}

// ActorFromClaims maps verified token claims to an Actor.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, TenantID: claims.TenantID, Role: claims.Role}
}

// AttendanceServiceParams groups constructor dependencies.
type AttendanceServiceParams struct {
	Tokens      attendanceTokenRepository
	Records     attendanceRecordRepository
	Enrollments attendanceEnrollmentRepository
	Students    attendanceStudentRepository
	Classes     attendanceClassRepository
	Renderer    qrRenderer
	Metrics     attendanceMetrics
	Validator   *validator.Validate
	Logger      *zap.Logger
	Config      config.AttendanceConfig
}

// AttendanceService issues QR attendance codes and redeems them into attendance records.
type AttendanceService struct {
	tokens      attendanceTokenRepository
	records     attendanceRecordRepository
	enrollments attendanceEnrollmentRepository
	students    attendanceStudentRepository
	classes     attendanceClassRepository
	renderer    qrRenderer
	metrics     attendanceMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         config.AttendanceConfig
	loc         *time.Location
	now         func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(params AttendanceServiceParams) *AttendanceService {
	cfg := params.Config
	if cfg.ValidBefore <= 0 {
		cfg.ValidBefore = 10 * time.Minute
	}
	if cfg.ValidAfter <= 0 {
		cfg.ValidAfter = 15 * time.Minute
	}
	if cfg.SuffixLength <= 0 {
		cfg.SuffixLength = 6
	}
	if cfg.AnchorMode != config.AnchorSchedule {
		cfg.AnchorMode = config.AnchorIssuance
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	renderer := params.Renderer
	if renderer == nil {
		renderer = qrcode.NewRenderer()
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = (*MetricsService)(nil)
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		} else {
			logger.Warn("unknown attendance timezone, using UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		}
	}
	return &AttendanceService{
		tokens:      params.Tokens,
		records:     params.Records,
		enrollments: params.Enrollments,
		students:    params.Students,
		classes:     params.Classes,
		renderer:    renderer,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		loc:         loc,
		now:         time.Now,
	}
}

// Issue creates a short-lived code for the class. The window is anchored at issuance time,
// or at the class's scheduled start today when schedule anchoring is enabled.
func (s *AttendanceService) Issue(ctx context.Context, actor Actor, classID string) (*models.AttendanceToken, error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}
	class, err := s.classes.FindByID(ctx, actor.TenantID, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}
	if !class.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	now := s.now().UTC()
	anchor := now
	if s.cfg.AnchorMode == config.AnchorSchedule {
		if start, ok := class.StartOn(now.In(s.loc)); ok {
			anchor = start.UTC()
		}
	}

	suffix, err := randomBase36(s.cfg.SuffixLength)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate code")
	}
	token := &models.AttendanceToken{
		Token:      fmt.Sprintf("%s-%d-%s", class.ID, now.UnixMilli(), suffix),
		TenantID:   actor.TenantID,
		ClassID:    class.ID,
		ValidFrom:  anchor.Add(-s.cfg.ValidBefore),
		ValidUntil: anchor.Add(s.cfg.ValidAfter),
		IssuedBy:   actor.UserID,
		CreatedAt:  now,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		s.logger.Error("failed to persist attendance token", zap.String("class_id", class.ID), zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}
	s.metrics.ObserveTokenIssued()
	s.logger.Info("attendance token issued",
		zap.String("class_id", class.ID),
		zap.String("issued_by", actor.UserID),
		zap.Time("valid_from", token.ValidFrom),
		zap.Time("valid_until", token.ValidUntil),
	)
	return token, nil
}

// Redeem marks attendance for the scanned code. Checks run in a fixed order and the first
// failure is returned.
func (s *AttendanceService) Redeem(ctx context.Context, actor Actor, req dto.RedeemAttendanceRequest) (record *models.AttendanceRecord, err error) {
	defer func() { s.metrics.ObserveRedemption(err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redeem payload")
	}

	token, err := s.tokens.FindByToken(ctx, actor.TenantID, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidToken
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}

	now := s.now()
	switch token.Check(now) {
	case models.WindowNotYetOpen:
		return nil, appErrors.ErrTooEarly
	case models.WindowClosed:
		return nil, appErrors.ErrExpired
	}

	student, err := s.resolveStudent(ctx, actor, req.StudentID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.enrollments.ExistsActive(ctx, actor.TenantID, student.ID, token.ClassID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}
	if !enrolled {
		return nil, appErrors.ErrNotEnrolled
	}

	day := s.attendanceDay(now)
	marked, err := s.records.ExistsForDay(ctx, student.ID, token.ClassID, day)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}
	if marked {
		return nil, appErrors.ErrAlreadyMarked
	}

	record = &models.AttendanceRecord{
		TenantID:          actor.TenantID,
		StudentID:         student.ID,
		ClassID:           token.ClassID,
		AttendanceDate:    day,
		MarkedAt:          now.UTC(),
		MarkedBy:          actor.UserID,
		DeviceFingerprint: hashFingerprint(req.DeviceFingerprint),
		UserAgent:         truncate(req.UserAgent, maxUserAgent),
	}
	inserted, err := s.records.Insert(ctx, record)
	if err != nil {
		s.logger.Error("failed to persist attendance record", zap.String("student_id", student.ID), zap.String("class_id", token.ClassID), zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}
	if !inserted {
		return nil, appErrors.ErrAlreadyMarked
	}

	s.logger.Info("attendance marked",
		zap.String("student_id", student.ID),
		zap.String("class_id", token.ClassID),
		zap.String("marked_by", actor.UserID),
	)
	return record, nil
}

// resolveStudent picks the student the account is checking in. An explicit choice must be
// one of the linked students; without a choice exactly one linked student is required.
func (s *AttendanceService) resolveStudent(ctx context.Context, actor Actor, chosen string) (*models.Student, error) {
	linked, err := s.students.ListLinkedToUser(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}
	if chosen = strings.TrimSpace(chosen); chosen != "" {
		for i := range linked {
			if linked[i].ID == chosen {
				return &linked[i], nil
			}
		}
		return nil, appErrors.ErrNoStudentLinked
	}
	switch len(linked) {
	case 0:
		return nil, appErrors.ErrNoStudentLinked
	case 1:
		return &linked[0], nil
	default:
		return nil, appErrors.ErrStudentSelectionRequired
	}
}

// ListByClass returns the check-ins for a class on date (YYYY-MM-DD, default today).
func (s *AttendanceService) ListByClass(ctx context.Context, actor Actor, classID, date string) ([]models.AttendanceRecordDetail, error) {
	day := s.attendanceDay(s.now())
	if strings.TrimSpace(date) != "" {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
		}
		day = parsed
	}
	if _, err := s.classes.FindByID(ctx, actor.TenantID, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	rows, err := s.records.ListByClassAndDate(ctx, actor.TenantID, classID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, nil
}

// StudentHistory returns a student's attendance. Guardians and students only see students linked to them.
func (s *AttendanceService) StudentHistory(ctx context.Context, actor Actor, filter models.AttendanceHistoryFilter) ([]models.AttendanceRecordDetail, *models.Pagination, error) {
	if strings.TrimSpace(filter.StudentID) == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	if actor.Role == models.RoleGuardian || actor.Role == models.RoleStudent {
		linked, err := s.students.ListLinkedToUser(ctx, actor.TenantID, actor.UserID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
		}
		if !containsStudent(linked, filter.StudentID) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "student is not linked to this account")
		}
	} else if _, err := s.students.FindByID(ctx, actor.TenantID, filter.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	filter.Page, filter.PageSize = models.NormalisePage(filter.Page, filter.PageSize, 50, 200)
	rows, total, err := s.records.ListByStudent(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// QRCode renders the code as a PNG. The token must belong to the actor's tenant.
func (s *AttendanceService) QRCode(ctx context.Context, actor Actor, token string, size int) ([]byte, error) {
	t, err := s.lookupForRender(ctx, actor, token)
	if err != nil {
		return nil, err
	}
	png, err := s.renderer.PNG(t.Token, size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code")
	}
	return png, nil
}

// QRSheet renders a printable PDF with the class name, validity window and QR code.
func (s *AttendanceService) QRSheet(ctx context.Context, actor Actor, token string) ([]byte, error) {
	t, err := s.lookupForRender(ctx, actor, token)
	if err != nil {
		return nil, err
	}
	title := "Attendance"
	if class, err := s.classes.FindByID(ctx, actor.TenantID, t.ClassID); err == nil {
		title = class.Name
	}
	pdf, err := s.renderer.PDF(qrcode.Sheet{
		Title:      title,
		Subtitle:   "Scan to check in",
		Token:      t.Token,
		ValidFrom:  t.ValidFrom,
		ValidUntil: t.ValidUntil,
		Location:   s.loc,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render sheet")
	}
	return pdf, nil
}

func (s *AttendanceService) lookupForRender(ctx context.Context, actor Actor, token string) (*models.AttendanceToken, error) {
	t, err := s.tokens.FindByToken(ctx, actor.TenantID, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidToken
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load code")
	}
	return t, nil
}

// PurgeExpired deletes tokens whose window closed before the retention period.
func (s *AttendanceService) PurgeExpired(ctx context.Context) (int64, error) {
	retention := s.cfg.PurgeRetention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	cutoff := s.now().UTC().Add(-retention)
	n, err := s.tokens.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, appErrors.WrapAs(err, appErrors.ErrPersistence, "failed to purge attendance codes")
	}
	s.metrics.ObserveTokensPurged(n)
	s.logger.Info("stale attendance tokens purged", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}

// HandlePurgeJob is the jobs.Handler for JobTypePurgeTokens.
func (s *AttendanceService) HandlePurgeJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypePurgeTokens {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}
	_, err := s.PurgeExpired(ctx)
	return err
}

// PurgeJob builds the janitor job for a tick.
func PurgeJob(tick time.Time) jobs.Job {
	return jobs.Job{
		ID:       "purge-" + strconv.FormatInt(tick.Unix(), 10),
		Type:     JobTypePurgeTokens,
		Enqueued: tick,
	}
}

// attendanceDay is the calendar day of t in the studio timezone, as a UTC midnight.
func (s *AttendanceService) attendanceDay(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func randomBase36(n int) (string, error) {
	alphabetLen := big.NewInt(int64(len(base36Alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36Alphabet[idx.Int64()])
	}
	return b.String(), nil
}

func hashFingerprint(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	sum := blake2b.Sum256([]byte(raw))
	digest := hex.EncodeToString(sum[:])
	return &digest
}

func truncate(value string, limit int) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if len(value) > limit {
		value = value[:limit]
	}
	return &value
}

func containsStudent(students []models.Student, id string) bool {
	for _, st := range students {
		if st.ID == id {
			return true
		}
	}
	return false
}
