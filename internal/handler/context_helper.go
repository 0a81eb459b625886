package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-adp-api/internal/middleware"
	"github.com/noah-isme/studio-adp-api/internal/service"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
	"github.com/noah-isme/studio-adp-api/pkg/response"
)

// actorFromContext returns the authenticated actor, writing a 401 when claims are missing.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := middleware.Claims(c)
	if claims == nil || claims.TenantID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, false
	}
	return service.ActorFromClaims(claims), true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}
