package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type createTenantRequest struct {
	Name         string `json:"name" binding:"required"`
	ContactEmail string `json:"contact_email" binding:"required,email"`
	Phone        string `json:"phone"`
}

// CreateTenant handles POST /api/admin/tenants. The dashboard token is
// returned once at creation.
func (h *Handler) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant, err := h.reg.CreateTenant(c.Request.Context(), req.Name, req.ContactEmail, req.Phone)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenant":          tenant,
		"dashboard_token": tenant.DashboardToken,
	})
}

// DeleteTenant handles DELETE /api/admin/tenants/:tenant_id. Cascades to the
// tenant's devices, channels and readings.
func (h *Handler) DeleteTenant(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("tenant_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}
	if err := h.reg.DeleteTenant(c.Request.Context(), tenantID); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createDeviceRequest struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
}

// CreateDevice handles POST /api/admin/tenants/:tenant_id/devices. The
// freshly issued secrets are returned once; they are never readable again.
func (h *Handler) CreateDevice(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("tenant_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}

	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.reg.CreateDevice(c.Request.Context(), tenantID, req.Name, req.Location)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"device":       device,
		"write_secret": device.WriteSecret,
		"read_secret":  device.ReadSecret,
	})
}

// ListTenantDevices handles GET /api/admin/tenants/:tenant_id/devices,
// inactive devices included.
func (h *Handler) ListTenantDevices(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("tenant_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}
	if _, err := h.reg.ResolveTenant(c.Request.Context(), tenantID); err != nil {
		h.abortWithError(c, err)
		return
	}

	devices, err := h.reg.AllDevicesOf(c.Request.Context(), tenantID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

type patchDeviceRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// PatchDevice handles PATCH /api/admin/devices/:device_id (active flag).
func (h *Handler) PatchDevice(c *gin.Context) {
	deviceID, err := strconv.ParseInt(c.Param("device_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	var req patchDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.reg.SetDeviceActive(c.Request.Context(), deviceID, *req.IsActive)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": device})
}

// ListDeviceChannels handles GET /api/admin/devices/:device_id/channels.
func (h *Handler) ListDeviceChannels(c *gin.Context) {
	deviceID, err := strconv.ParseInt(c.Param("device_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	channels, err := h.reg.ListChannels(c.Request.Context(), deviceID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}
