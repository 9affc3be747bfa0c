package model

import "time"

// Tenant represents a customer account owning a fleet of devices.
type Tenant struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:128;not null" json:"name"`
	ContactEmail string `gorm:"size:256;not null" json:"contact_email"`
	Phone        string `gorm:"size:32" json:"phone,omitempty"`

	// DashboardToken is an opaque capability granting read access to the
	// tenant's aggregated view. Unique and immutable once issued.
	DashboardToken string `gorm:"uniqueIndex;size:64;not null" json:"-"`

	AlertThreshold    float64 `gorm:"not null;default:0.8" json:"alert_threshold"`
	ReceiveSMSAlerts  bool    `gorm:"not null;default:true" json:"receive_sms_alerts"`
	ReceiveEmailAlerts bool   `gorm:"not null;default:true" json:"receive_email_alerts"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Devices []Device `gorm:"foreignKey:TenantID" json:"-"`
}
