package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTenantDevices handles GET /api/tenants/:token/devices. The path token
// is the tenant's opaque dashboard capability; the response lists the
// tenant's active devices with their current value per channel.
func (h *Handler) GetTenantDevices(c *gin.Context) {
	summaries, err := h.svc.DashboardDevices(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(summaries),
		"devices": summaries,
	})
}
