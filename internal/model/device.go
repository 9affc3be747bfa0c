package model

import "time"

// Device represents a physical or simulated telemetry source. Each device
// carries its own write and read secrets, generated at creation and never
// user-editable.
type Device struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	TenantID int64  `gorm:"index;not null" json:"tenant_id"`
	Name     string `gorm:"size:128;not null" json:"name"`
	Location string `gorm:"size:128" json:"location,omitempty"`

	WriteSecret string `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ReadSecret  string `gorm:"uniqueIndex;size:64;not null" json:"-"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Tenant   Tenant    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Channels []Channel `gorm:"foreignKey:DeviceID" json:"-"`
}
