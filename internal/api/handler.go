package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"heatwatch-backend/internal/credential"
	"heatwatch-backend/internal/registry"
	"heatwatch-backend/internal/service"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *service.Service
	reg     *registry.Registry
	db      *gorm.DB
	webpush *webpush.Options
	log     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *service.Service, reg *registry.Registry, db *gorm.DB, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	return &Handler{
		svc:     svc,
		reg:     reg,
		db:      db,
		webpush: webpushOptions,
		log:     log,
	}
}

// abortWithError maps service-layer errors onto HTTP statuses. Authentication
// failures are always the same generic unauthorized body; unknown and
// cross-tenant resources are both plain not-found.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, credential.ErrAuthenticationFailed):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, registry.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, registry.ErrDuplicateDeviceName):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "device name already in use"})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
