package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-adp-api/internal/dto"
	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/service"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
	"github.com/noah-isme/studio-adp-api/pkg/response"
)

type paymentService interface {
	CreateCharge(ctx context.Context, actor service.Actor, req dto.CreateChargeRequest) (*models.Payment, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.Payment, error)
	List(ctx context.Context, actor service.Actor, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error)
	RefreshStatus(ctx context.Context, actor service.Actor, id string) (*models.Payment, error)
	MarkPaid(ctx context.Context, actor service.Actor, id string, req dto.MarkPaidRequest) (*models.Payment, error)
}

// PaymentHandler exposes the charge ledger.
type PaymentHandler struct {
	payments paymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create godoc
// @Summary Create charge
// @Description Creates a charge with the tenant's active payment provider.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.CreateChargeRequest true "Charge"
// @Success 201 {object} response.Envelope{data=models.Payment}
// @Failure 502 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload"))
		return
	}
	p, err := h.payments.CreateCharge(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// List godoc
// @Summary List charges
// @Tags Payments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param status query string false "pending, paid, overdue or cancelled"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.Payment}
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.PaymentFilter{
		StudentID: c.Query("studentId"),
		Status:    models.ChargeStatus(strings.ToLower(c.Query("status"))),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 20),
	}
	items, pagination, err := h.payments.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get charge
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope{data=models.Payment}
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	p, err := h.payments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, p, nil)
}

// Refresh godoc
// @Summary Refresh charge status from the provider
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope{data=models.Payment}
// @Router /payments/{id}/refresh [post]
func (h *PaymentHandler) Refresh(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	p, err := h.payments.RefreshStatus(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, p, nil)
}

// MarkPaid godoc
// @Summary Confirm a manual payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body dto.MarkPaidRequest true "Confirmation"
// @Success 200 {object} response.Envelope{data=models.Payment}
// @Router /payments/{id}/mark-paid [post]
func (h *PaymentHandler) MarkPaid(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload"))
		return
	}
	p, err := h.payments.MarkPaid(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, p, nil)
}
