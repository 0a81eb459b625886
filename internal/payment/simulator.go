package payment

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

// SimulatorConfig shapes the artificial latency of the simulators.
type SimulatorConfig struct {
	Latency time.Duration
	Jitter  time.Duration
	// InvoiceBaseURL is used to build a plausible invoice link. No request is ever made to it.
	InvoiceBaseURL string
	Logger         *zap.Logger
}

// Simulator is the in-memory provider behind both MOCK and SANDBOX. It performs no I/O,
// keeps no state and always reports charges as pending.
type Simulator struct {
	kind    models.PaymentProviderKind
	prefix  string
	latency time.Duration
	jitter  time.Duration
	invoice string
	logger  *zap.Logger
}

// NewMock returns the MOCK variant.
func NewMock(cfg SimulatorConfig) *Simulator {
	return newSimulator(models.ProviderMock, "mock", cfg)
}

// NewSandbox returns the SANDBOX variant. It mirrors the mock but labels ids and invoice links as sandbox.
func NewSandbox(cfg SimulatorConfig) *Simulator {
	return newSimulator(models.ProviderSandbox, "sandbox", cfg)
}

func newSimulator(kind models.PaymentProviderKind, prefix string, cfg SimulatorConfig) *Simulator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Latency < 0 {
		cfg.Latency = 0
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Simulator{
		kind:    kind,
		prefix:  prefix,
		latency: cfg.Latency,
		jitter:  cfg.Jitter,
		invoice: strings.TrimRight(cfg.InvoiceBaseURL, "/"),
		logger:  cfg.Logger.With(zap.String("provider", string(kind))),
	}
}

// Kind implements Provider.
func (s *Simulator) Kind() models.PaymentProviderKind { return s.kind }

// CreateCharge implements Provider.
func (s *Simulator) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	id := s.prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	ref := req.ExternalReference
	if ref == "" {
		ref = uuid.NewString()
	}
	charge := &Charge{
		ID:                id,
		CustomerReference: req.CustomerReference,
		Value:             req.Value,
		DueDate:           req.DueDate,
		Description:       req.Description,
		ExternalReference: ref,
		Status:            models.ChargeStatusPending,
	}
	if s.invoice != "" {
		charge.InvoiceURL = s.invoice + "/i/" + id
	}
	s.logger.Debug("simulated charge created", zap.String("id", id), zap.String("external_reference", ref), zap.Float64("value", req.Value))
	return charge, nil
}

// GetStatus implements Provider. Simulated charges never change status on their own.
func (s *Simulator) GetStatus(ctx context.Context, reference string) (*Status, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	return &Status{ID: reference, Status: models.ChargeStatusPending}, nil
}

// MarkPaid implements Provider. Nothing is stored; the caller persists the transition.
func (s *Simulator) MarkPaid(ctx context.Context, reference string, paidAt time.Time, method string) error {
	if err := s.pause(ctx); err != nil {
		return err
	}
	s.logger.Debug("simulated payment confirmation", zap.String("id", reference), zap.Time("paid_at", paidAt), zap.String("method", method))
	return nil
}

func (s *Simulator) pause(ctx context.Context) error {
	d := s.latency
	if s.jitter > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(s.jitter)+1)); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
