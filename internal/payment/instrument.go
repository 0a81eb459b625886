package payment

import (
	"context"
	"time"

	"github.com/noah-isme/studio-adp-api/internal/models"
)

// Instrument reports every call on p to obs.
func Instrument(p Provider, obs Observer) Provider {
	if obs == nil {
		return p
	}
	return &instrumented{next: p, obs: obs}
}

type instrumented struct {
	next Provider
	obs  Observer
}

func (i *instrumented) Kind() models.PaymentProviderKind { return i.next.Kind() }

func (i *instrumented) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	start := time.Now()
	charge, err := i.next.CreateCharge(ctx, req)
	i.obs.ObserveProviderCall(i.next.Kind(), OpCreateCharge, err, time.Since(start))
	return charge, err
}

func (i *instrumented) GetStatus(ctx context.Context, reference string) (*Status, error) {
	start := time.Now()
	status, err := i.next.GetStatus(ctx, reference)
	i.obs.ObserveProviderCall(i.next.Kind(), OpGetStatus, err, time.Since(start))
	return status, err
}

func (i *instrumented) MarkPaid(ctx context.Context, reference string, paidAt time.Time, method string) error {
	start := time.Now()
	err := i.next.MarkPaid(ctx, reference, paidAt, method)
	i.obs.ObserveProviderCall(i.next.Kind(), OpMarkPaid, err, time.Since(start))
	return err
}
