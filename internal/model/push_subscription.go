package model

import "time"

// PushSubscription holds a browser push subscription registered by a tenant
// for out-of-range alerts.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	TenantID  int64     `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Tenant Tenant `gorm:"constraint:OnDelete:CASCADE"`
}
