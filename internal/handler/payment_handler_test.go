package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-adp-api/internal/dto"
	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/service"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
)

type paymentServiceMock struct {
	createReq  dto.CreateChargeRequest
	createErr  error
	lastFilter models.PaymentFilter
	markReq    dto.MarkPaidRequest
	refreshed  string
}

func (m *paymentServiceMock) CreateCharge(ctx context.Context, actor service.Actor, req dto.CreateChargeRequest) (*models.Payment, error) {
	m.createReq = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.Payment{ID: "pay-1", Status: models.ChargeStatusPending}, nil
}

func (m *paymentServiceMock) Get(ctx context.Context, actor service.Actor, id string) (*models.Payment, error) {
	return &models.Payment{ID: id}, nil
}

func (m *paymentServiceMock) List(ctx context.Context, actor service.Actor, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Payment{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (m *paymentServiceMock) RefreshStatus(ctx context.Context, actor service.Actor, id string) (*models.Payment, error) {
	m.refreshed = id
	return &models.Payment{ID: id, Status: models.ChargeStatusPaid}, nil
}

func (m *paymentServiceMock) MarkPaid(ctx context.Context, actor service.Actor, id string, req dto.MarkPaidRequest) (*models.Payment, error) {
	m.markReq = req
	return &models.Payment{ID: id, Status: models.ChargeStatusPaid}, nil
}

var adminClaims = &models.JWTClaims{UserID: "admin", TenantID: "t1", Role: models.RoleAdmin}

func TestPaymentHandlerCreate(t *testing.T) {
	mockSvc := &paymentServiceMock{}
	h := NewPaymentHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/api/v1/payments", `{"student_id":"stu-1","amount":150,"due_date":"2024-06-01","description":"Monthly fee"}`, adminClaims)
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 150.0, mockSvc.createReq.Amount)
	assert.Equal(t, "Monthly fee", mockSvc.createReq.Description)
}

func TestPaymentHandlerCreateGatewayFailure(t *testing.T) {
	h := NewPaymentHandler(&paymentServiceMock{createErr: appErrors.ErrChargeCreationFailed})
	c, w := newTestContext(http.MethodPost, "/api/v1/payments", `{"student_id":"stu-1","amount":150,"due_date":"2024-06-01"}`, adminClaims)
	h.Create(c)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPaymentHandlerListAndActions(t *testing.T) {
	mockSvc := &paymentServiceMock{}
	h := NewPaymentHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/api/v1/payments?status=PAID&studentId=stu-1&limit=5", "", adminClaims)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ChargeStatusPaid, mockSvc.lastFilter.Status)
	assert.Equal(t, "stu-1", mockSvc.lastFilter.StudentID)
	assert.Equal(t, 5, mockSvc.lastFilter.PageSize)

	c, w = newTestContext(http.MethodPost, "/api/v1/payments/pay-1/refresh", "", adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}
	h.Refresh(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pay-1", mockSvc.refreshed)

	c, w = newTestContext(http.MethodPost, "/api/v1/payments/pay-1/mark-paid", `{"payment_date":"2024-06-01","method":"PIX"}`, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}
	h.MarkPaid(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PIX", mockSvc.markReq.Method)
}
