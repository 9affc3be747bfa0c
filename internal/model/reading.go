package model

import "time"

// Reading is one immutable timestamped scalar sample on a channel. Readings
// are never updated or deleted; storage order is newest-first with the
// autoincrement id breaking equal-timestamp ties.
type Reading struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID  int64     `gorm:"not null;index:idx_device_created,priority:1" json:"device_id"`
	ChannelID int64     `gorm:"not null;index" json:"-"`
	Value     float64   `gorm:"not null" json:"value"`
	CreatedAt time.Time `gorm:"not null;index:idx_device_created,priority:2" json:"created_at"`

	// Associations
	Channel Channel `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
