package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-adp-api/internal/dto"
	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/service"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
	"github.com/noah-isme/studio-adp-api/pkg/response"
)

type settingsService interface {
	PaymentProvider(ctx context.Context, actor service.Actor) (*models.TenantSettings, error)
	UpdatePaymentProvider(ctx context.Context, actor service.Actor, req dto.UpdatePaymentProviderRequest) (*models.TenantSettings, error)
}

// SettingsHandler exposes tenant settings.
type SettingsHandler struct {
	settings settingsService
}

// NewSettingsHandler constructs SettingsHandler.
func NewSettingsHandler(settings settingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetPaymentProvider godoc
// @Summary Get payment provider
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope{data=models.TenantSettings}
// @Router /settings/payment-provider [get]
func (h *SettingsHandler) GetPaymentProvider(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	settings, err := h.settings.PaymentProvider(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdatePaymentProvider godoc
// @Summary Switch payment provider
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.UpdatePaymentProviderRequest true "Provider"
// @Success 200 {object} response.Envelope{data=models.TenantSettings}
// @Router /settings/payment-provider [put]
func (h *SettingsHandler) UpdatePaymentProvider(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdatePaymentProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload"))
		return
	}
	settings, err := h.settings.UpdatePaymentProvider(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
