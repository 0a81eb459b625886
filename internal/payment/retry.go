package payment

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

// WithRetry decorates p so failed calls are retried up to attempts times in total.
// Cancelled contexts and rejections the gateway marks as permanent (4xx) are not retried.
func WithRetry(p Provider, attempts int, delay time.Duration) Provider {
	if attempts <= 1 {
		return p
	}
	return &retrying{next: p, attempts: attempts, delay: delay}
}

type retrying struct {
	next     Provider
	attempts int
	delay    time.Duration
}

func (r *retrying) Kind() models.PaymentProviderKind { return r.next.Kind() }

func (r *retrying) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	var out *Charge
	err := r.run(ctx, func() error {
		var err error
		out, err = r.next.CreateCharge(ctx, req)
		return err
	})
	return out, err
}

func (r *retrying) GetStatus(ctx context.Context, reference string) (*Status, error) {
	var out *Status
	err := r.run(ctx, func() error {
		var err error
		out, err = r.next.GetStatus(ctx, reference)
		return err
	})
	return out, err
}

func (r *retrying) MarkPaid(ctx context.Context, reference string, paidAt time.Time, method string) error {
	return r.run(ctx, func() error {
		return r.next.MarkPaid(ctx, reference, paidAt, method)
	})
}

func (r *retrying) run(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = fn(); err == nil || !retryable(err) || attempt == r.attempts {
			return err
		}
		wait := r.delay * time.Duration(1<<(attempt-1))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr.Temporary()
	}
	return true
}
