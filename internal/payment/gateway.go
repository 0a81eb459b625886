package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-adp-api/internal/models"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
)

const maxErrorBody = 4 << 10

// GatewayConfig configures the production gateway client.
type GatewayConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Gateway talks to the payment gateway REST API (v3 "payments" resource).
type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewGateway validates cfg and returns the PRODUCTION variant. A missing API key is a
// tenant misconfiguration and fails here rather than on first use.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, appErrors.ErrMissingAPIKey
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment gateway url")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Gateway{baseURL: base, apiKey: cfg.APIKey, client: client, logger: cfg.Logger.With(zap.String("provider", string(models.ProviderProduction)))}, nil
}

// Kind implements Provider.
func (g *Gateway) Kind() models.PaymentProviderKind { return models.ProviderProduction }

type gatewayChargeRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
}

type gatewayPayment struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description"`
	ExternalReference string  `json:"externalReference"`
	Status            string  `json:"status"`
	BillingType       string  `json:"billingType"`
	PaymentDate       string  `json:"paymentDate"`
	ClientPaymentDate string  `json:"clientPaymentDate"`
	InvoiceURL        string  `json:"invoiceUrl"`
}

type gatewayReceiveInCash struct {
	PaymentDate    string `json:"paymentDate"`
	NotifyCustomer bool   `json:"notifyCustomer"`
}

type gatewayErrorBody struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// CreateCharge implements Provider.
func (g *Gateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	body := gatewayChargeRequest{
		Customer:          req.CustomerReference,
		BillingType:       "UNDEFINED",
		Value:             req.Value,
		DueDate:           req.DueDate.Format(dateLayout),
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
	}
	var created gatewayPayment
	if err := g.do(ctx, http.MethodPost, "/payments", body, &created); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrChargeCreationFailed, "")
	}
	ref := created.ExternalReference
	if ref == "" {
		ref = created.ID
	}
	if created.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrChargeCreationFailed, "gateway returned a charge without id")
	}
	due, _ := time.Parse(dateLayout, created.DueDate)
	if due.IsZero() {
		due = req.DueDate
	}
	return &Charge{
		ID:                created.ID,
		CustomerReference: created.Customer,
		Value:             created.Value,
		DueDate:           due,
		Description:       created.Description,
		ExternalReference: ref,
		Status:            normaliseStatus(created.Status),
		InvoiceURL:        created.InvoiceURL,
	}, nil
}

// GetStatus implements Provider.
func (g *Gateway) GetStatus(ctx context.Context, reference string) (*Status, error) {
	var p gatewayPayment
	if err := g.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(reference), nil, &p); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrStatusLookupFailed, "")
	}
	status := &Status{ID: p.ID, Status: normaliseStatus(p.Status), PaymentMethod: p.BillingType}
	paid := p.PaymentDate
	if paid == "" {
		paid = p.ClientPaymentDate
	}
	if t, err := time.Parse(dateLayout, paid); err == nil {
		status.PaidDate = &t
	}
	return status, nil
}

// MarkPaid implements Provider. Webhooks normally deliver confirmations; this exists for manual reconciliation.
func (g *Gateway) MarkPaid(ctx context.Context, reference string, paidAt time.Time, method string) error {
	body := gatewayReceiveInCash{PaymentDate: paidAt.Format(dateLayout)}
	if err := g.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(reference)+"/receiveInCash", body, nil); err != nil {
		return appErrors.WrapAs(err, appErrors.ErrMarkPaidFailed, "")
	}
	g.logger.Info("payment confirmed at gateway", zap.String("id", reference), zap.String("method", method))
	return nil
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal gateway request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("access_token", g.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		gerr := &GatewayError{StatusCode: resp.StatusCode}
		var body gatewayErrorBody
		if json.Unmarshal(raw, &body) == nil {
			for _, e := range body.Errors {
				gerr.Messages = append(gerr.Messages, e.Description)
			}
		}
		g.logger.Warn("gateway rejected request", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Strings("errors", gerr.Messages))
		return gerr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

// GatewayError is a non-2xx response from the gateway.
type GatewayError struct {
	StatusCode int
	Messages   []string
}

func (e *GatewayError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("gateway responded %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway responded %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// Temporary reports whether retrying could succeed.
func (e *GatewayError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func normaliseStatus(raw string) models.ChargeStatus {
	switch strings.ToUpper(raw) {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return models.ChargeStatusPaid
	case "OVERDUE":
		return models.ChargeStatusOverdue
	case "REFUNDED", "DELETED", "CANCELLED", "CHARGEBACK_REQUESTED":
		return models.ChargeStatusCancelled
	default:
		return models.ChargeStatusPending
	}
}
