package registry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"heatwatch-backend/internal/credential"
	"heatwatch-backend/internal/model"
)

// ErrNotFound is returned when a tenant or device cannot be resolved. It is
// also what a cross-tenant access attempt surfaces, so a caller can never
// confirm the existence of another tenant's device id.
var ErrNotFound = errors.New("not found")

// ErrDuplicateDeviceName is returned from CreateDevice when per-tenant name
// uniqueness is enabled and the name is already taken.
var ErrDuplicateDeviceName = errors.New("device name already in use for tenant")

// Registry holds the Customer -> Device ownership graph.
type Registry struct {
	db                *gorm.DB
	creds             *credential.Store
	uniqueDeviceNames bool
	log               *zap.Logger
}

// NewRegistry creates a registry backed by the given database. Secret
// generation is delegated to the credential store.
func NewRegistry(db *gorm.DB, creds *credential.Store, uniqueDeviceNames bool, log *zap.Logger) *Registry {
	return &Registry{db: db, creds: creds, uniqueDeviceNames: uniqueDeviceNames, log: log}
}

// CreateTenant provisions a new customer account with a freshly issued
// dashboard capability token.
func (r *Registry) CreateTenant(ctx context.Context, name, email, phone string) (*model.Tenant, error) {
	tenant := model.Tenant{
		Name:               name,
		ContactEmail:       email,
		Phone:              phone,
		DashboardToken:     r.creds.Issue(),
		AlertThreshold:     0.8,
		ReceiveSMSAlerts:   true,
		ReceiveEmailAlerts: true,
	}
	if err := r.db.WithContext(ctx).Create(&tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	r.log.Info("tenant created", zap.Int64("tenant_id", tenant.ID), zap.String("name", name))
	return &tenant, nil
}

// ResolveTenant looks a tenant up by id.
func (r *Registry) ResolveTenant(ctx context.Context, id int64) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// ResolveTenantByToken looks a tenant up by its dashboard capability token.
func (r *Registry) ResolveTenantByToken(ctx context.Context, token string) (*model.Tenant, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	var tenant model.Tenant
	if err := r.db.WithContext(ctx).Where("dashboard_token = ?", token).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// CreateDevice allocates a new device under the tenant with freshly issued
// read and write secrets.
func (r *Registry) CreateDevice(ctx context.Context, tenantID int64, name, location string) (*model.Device, error) {
	if _, err := r.ResolveTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if r.uniqueDeviceNames {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Device{}).
			Where("tenant_id = ? AND name = ?", tenantID, name).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrDuplicateDeviceName
		}
	}

	writeSecret := r.creds.Issue()
	readSecret := r.creds.Issue()
	for readSecret == writeSecret {
		readSecret = r.creds.Issue()
	}

	device := model.Device{
		TenantID:    tenantID,
		Name:        name,
		Location:    location,
		WriteSecret: writeSecret,
		ReadSecret:  readSecret,
		IsActive:    true,
	}
	if err := r.db.WithContext(ctx).Create(&device).Error; err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	r.log.Info("device created",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("device_id", device.ID),
		zap.String("name", name))
	return &device, nil
}

// ResolveDevice looks a device up by id.
func (r *Registry) ResolveDevice(ctx context.Context, id int64) (*model.Device, error) {
	var device model.Device
	if err := r.db.WithContext(ctx).First(&device, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &device, nil
}

// DeviceOfTenant resolves a device on behalf of a tenant. A device owned by
// another tenant is reported as not found.
func (r *Registry) DeviceOfTenant(ctx context.Context, tenantID, deviceID int64) (*model.Device, error) {
	device, err := r.ResolveDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return device, nil
}

// DevicesOf returns the tenant's active devices in creation order. Inactive
// devices are excluded from tenant-facing listings.
func (r *Registry) DevicesOf(ctx context.Context, tenantID int64) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("created_at ASC, id ASC").
		Find(&devices).Error
	return devices, err
}

// AllDevicesOf returns every device of the tenant, inactive ones included.
// Administrative path.
func (r *Registry) AllDevicesOf(ctx context.Context, tenantID int64) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&devices).Error
	return devices, err
}

// SetDeviceActive flips the active flag of a device.
func (r *Registry) SetDeviceActive(ctx context.Context, deviceID int64, active bool) (*model.Device, error) {
	device, err := r.ResolveDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(device).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	r.log.Info("device active flag updated", zap.Int64("device_id", deviceID), zap.Bool("active", active))
	return device, nil
}

// ListChannels returns the channels of a device in creation order, with their
// types.
func (r *Registry) ListChannels(ctx context.Context, deviceID int64) ([]model.Channel, error) {
	if _, err := r.ResolveDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	var channels []model.Channel
	err := r.db.WithContext(ctx).
		Preload("ChannelType").
		Where("device_id = ?", deviceID).
		Order("id ASC").
		Find(&channels).Error
	return channels, err
}

// DeleteTenant removes a tenant and everything it owns: devices, channels,
// readings and push subscriptions. Administrative path.
func (r *Registry) DeleteTenant(ctx context.Context, tenantID int64) error {
	if _, err := r.ResolveTenant(ctx, tenantID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deviceIDs := func() *gorm.DB {
			return tx.Session(&gorm.Session{NewDB: true}).Model(&model.Device{}).Select("id").Where("tenant_id = ?", tenantID)
		}

		if err := tx.Where("device_id IN (?)", deviceIDs()).Delete(&model.Reading{}).Error; err != nil {
			return fmt.Errorf("failed to delete readings: %w", err)
		}
		if err := tx.Where("device_id IN (?)", deviceIDs()).Delete(&model.Channel{}).Error; err != nil {
			return fmt.Errorf("failed to delete channels: %w", err)
		}
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&model.Device{}).Error; err != nil {
			return fmt.Errorf("failed to delete devices: %w", err)
		}
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&model.PushSubscription{}).Error; err != nil {
			return fmt.Errorf("failed to delete subscriptions: %w", err)
		}
		if err := tx.Delete(&model.Tenant{}, tenantID).Error; err != nil {
			return fmt.Errorf("failed to delete tenant: %w", err)
		}
		return nil
	})
}
