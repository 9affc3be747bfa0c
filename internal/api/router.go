package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"heatwatch-backend/config"
	"heatwatch-backend/internal/mw"
	"heatwatch-backend/internal/registry"
	"heatwatch-backend/internal/service"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, svc *service.Service, reg *registry.Registry, db *gorm.DB, webpushOptions *webpush.Options, log *zap.Logger) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(svc, reg, db, webpushOptions, log)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Device-facing telemetry, authorized via per-device secrets.
		api.POST("/devices/:device_id/data", handler.PostDeviceData)
		api.GET("/devices/:device_id/data", handler.GetDeviceData)

		// Tenant dashboard, authorized via the dashboard capability token.
		api.GET("/tenants/:token/devices", caching, handler.GetTenantDevices)
		api.PUT("/tenants/:token/subscriptions", handler.PutSubscription)
		api.DELETE("/tenants/:token/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		// Administrative CRUD onto the registry.
		admin := api.Group("/admin")
		{
			admin.POST("/tenants", handler.CreateTenant)
			admin.DELETE("/tenants/:tenant_id", handler.DeleteTenant)
			admin.POST("/tenants/:tenant_id/devices", handler.CreateDevice)
			admin.GET("/tenants/:tenant_id/devices", handler.ListTenantDevices)
			admin.PATCH("/devices/:device_id", handler.PatchDevice)
			admin.GET("/devices/:device_id/channels", handler.ListDeviceChannels)
		}
	}

	return r
}
