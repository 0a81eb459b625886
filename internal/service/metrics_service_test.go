package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/payment"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
)

var _ payment.Observer = (*MetricsService)(nil)

func TestMetricsServiceExposesDomainCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/attendance/redeem", http.StatusOK, 20*time.Millisecond)
	m.ObserveRedemption(nil)
	m.ObserveRedemption(appErrors.ErrExpired)
	m.ObserveTokenIssued()
	m.ObserveTokensPurged(4)
	m.ObserveProviderCall(models.ProviderProduction, payment.OpCreateCharge, errors.New("boom"), time.Second)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `attendance_redemptions_total{outcome="EXPIRED"} 1`)
	assert.Contains(t, body, `attendance_redemptions_total{outcome="marked"} 1`)
	assert.Contains(t, body, "attendance_tokens_purged_total 4")
	assert.Contains(t, body, `payment_provider_errors_total{code="INTERNAL_ERROR",operation="create_charge",provider="PRODUCTION"} 1`)

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.RequestsTotal)
	assert.EqualValues(t, 1, snap.RedemptionsAccepted)
	assert.EqualValues(t, 1, snap.RedemptionsRejected)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveRedemption(nil)
	m.ObserveProviderCall(models.ProviderMock, payment.OpGetStatus, nil, time.Millisecond)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
