package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-adp-api/internal/dto"
	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/payment"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
)

type paymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, tenantID, id string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status models.ChargeStatus, paidAt *time.Time, method *string) error
	List(ctx context.Context, tenantID string, filter models.PaymentFilter) ([]models.Payment, int, error)
}

type paymentStudentLookup interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Student, error)
}

type providerFactory interface {
	ForTenant(ctx context.Context, tenantID string) (payment.Provider, error)
	Build(kind models.PaymentProviderKind) (payment.Provider, error)
}

// PaymentService keeps the local charge ledger in step with the tenant's payment provider.
type PaymentService struct {
	repo      paymentRepository
	students  paymentStudentLookup
	providers providerFactory
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students paymentStudentLookup, providers providerFactory, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, students: students, providers: providers, validator: validate, logger: logger, now: time.Now}
}

// CreateCharge registers a charge with the tenant's active provider and records it in the ledger.
func (s *PaymentService) CreateCharge(ctx context.Context, actor Actor, req dto.CreateChargeRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid charge payload")
	}
	dueDate, err := time.Parse(dateLayout, req.DueDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "due_date must be YYYY-MM-DD")
	}
	student, err := s.students.FindByID(ctx, actor.TenantID, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	provider, err := s.providers.ForTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	ledgerID := uuid.NewString()
	charge, err := provider.CreateCharge(ctx, payment.ChargeRequest{
		CustomerReference: student.ID,
		Value:             req.Amount,
		DueDate:           dueDate,
		Description:       req.Description,
		ExternalReference: ledgerID,
	})
	if err != nil {
		s.logger.Warn("charge creation failed", zap.String("provider", string(provider.Kind())), zap.String("student_id", student.ID), zap.Error(err))
		return nil, providerError(err, appErrors.ErrChargeCreationFailed)
	}

	now := s.now().UTC()
	record := &models.Payment{
		ID:                ledgerID,
		TenantID:          actor.TenantID,
		StudentID:         student.ID,
		Amount:            req.Amount,
		DueDate:           dueDate,
		Provider:          provider.Kind(),
		ExternalID:        charge.ID,
		ExternalReference: charge.ExternalReference,
		Status:            charge.Status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		record.Description = &desc
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("charge created but not recorded", zap.String("external_id", charge.ID), zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "")
	}
	s.logger.Info("charge created",
		zap.String("payment_id", record.ID),
		zap.String("provider", string(record.Provider)),
		zap.String("external_id", record.ExternalID),
	)
	return record, nil
}

// Get returns a ledger entry.
func (s *PaymentService) Get(ctx context.Context, actor Actor, id string) (*models.Payment, error) {
	p, err := s.repo.FindByID(ctx, actor.TenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return p, nil
}

// List returns the tenant's ledger filtered by student and status.
func (s *PaymentService) List(ctx context.Context, actor Actor, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}
	filter.Page, filter.PageSize = models.NormalisePage(filter.Page, filter.PageSize, 20, 100)
	items, total, err := s.repo.List(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// RefreshStatus polls the provider that created the charge and stores any status change.
func (s *PaymentService) RefreshStatus(ctx context.Context, actor Actor, id string) (*models.Payment, error) {
	record, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.Build(record.Provider)
	if err != nil {
		return nil, err
	}
	status, err := provider.GetStatus(ctx, record.ExternalID)
	if err != nil {
		return nil, providerError(err, appErrors.ErrStatusLookupFailed)
	}
	if status.Status == record.Status {
		return record, nil
	}
	// Simulators never track transitions, so a paid or cancelled row outranks their answer.
	if record.Status.Final() && !status.Status.Final() {
		s.logger.Debug("ignoring provider status behind local ledger", zap.String("payment_id", record.ID), zap.String("stored", string(record.Status)), zap.String("provider", string(status.Status)))
		return record, nil
	}

	var method *string
	if status.PaymentMethod != "" {
		m := status.PaymentMethod
		method = &m
	}
	if err := s.repo.UpdateStatus(ctx, actor.TenantID, record.ID, status.Status, status.PaidDate, method); err != nil {
		return nil, updateError(err)
	}
	s.logger.Info("payment status changed", zap.String("payment_id", record.ID), zap.String("from", string(record.Status)), zap.String("to", string(status.Status)))
	record.Status = status.Status
	record.PaidAt = status.PaidDate
	if method != nil {
		record.PaymentMethod = method
	}
	record.UpdatedAt = s.now().UTC()
	return record, nil
}

// MarkPaid confirms a payment received outside the gateway flow.
func (s *PaymentService) MarkPaid(ctx context.Context, actor Actor, id string, req dto.MarkPaidRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark paid payload")
	}
	paidAt, err := time.Parse(dateLayout, req.PaymentDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "payment_date must be YYYY-MM-DD")
	}
	record, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	switch record.Status {
	case models.ChargeStatusPaid:
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment is already paid")
	case models.ChargeStatusCancelled:
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment was cancelled")
	}

	provider, err := s.providers.Build(record.Provider)
	if err != nil {
		return nil, err
	}
	if err := provider.MarkPaid(ctx, record.ExternalID, paidAt, req.Method); err != nil {
		return nil, providerError(err, appErrors.ErrMarkPaidFailed)
	}
	method := req.Method
	if err := s.repo.UpdateStatus(ctx, actor.TenantID, record.ID, models.ChargeStatusPaid, &paidAt, &method); err != nil {
		return nil, updateError(err)
	}
	s.logger.Info("payment marked paid", zap.String("payment_id", record.ID), zap.String("method", method), zap.String("actor", actor.UserID))
	record.Status = models.ChargeStatusPaid
	record.PaidAt = &paidAt
	record.PaymentMethod = &method
	record.UpdatedAt = s.now().UTC()
	return record, nil
}

func updateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	return appErrors.WrapAs(err, appErrors.ErrPersistence, "")
}

// providerError keeps typed provider failures and maps anything else to base.
func providerError(err error, base *appErrors.Error) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) && typed.Code != appErrors.ErrInternal.Code {
		return err
	}
	return appErrors.WrapAs(err, base, "")
}
