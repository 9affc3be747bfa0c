package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"heatwatch-backend/internal/series"
	"heatwatch-backend/internal/service"
)

// PostDeviceData handles POST /api/devices/:device_id/data. The body is a
// flat mapping of channel label to value; the Authorization header carries
// the device's write secret.
func (h *Handler) PostDeviceData(c *gin.Context) {
	deviceID, err := strconv.ParseInt(c.Param("device_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := h.svc.Ingest(c.Request.Context(), deviceID, c.GetHeader("Authorization"), payload)
	if err != nil {
		if errors.Is(err, service.ErrEmptyPayload) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":        "no readings persisted",
				"field_errors": result.FieldErrors,
			})
			return
		}
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"count":        len(result.Persisted),
		"readings":     result.Persisted,
		"field_errors": result.FieldErrors,
	})
}

type channelData struct {
	Unit   string         `json:"unit"`
	Points []series.Point `json:"points"`
}

// GetDeviceData handles GET /api/devices/:device_id/data?limit=N. The
// Authorization header carries the device's read secret; the response is a
// label-keyed map of ascending series.
func (h *Handler) GetDeviceData(c *gin.Context) {
	deviceID, err := strconv.ParseInt(c.Param("device_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	groups, err := h.svc.DeviceData(c.Request.Context(), deviceID, c.GetHeader("Authorization"), limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	response := make(map[string]channelData, len(groups))
	for _, g := range groups {
		response[g.Label] = channelData{Unit: g.Unit, Points: g.Points}
	}
	c.JSON(http.StatusOK, response)
}
