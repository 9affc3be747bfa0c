package model

// ChannelType is a shared, tenant-agnostic catalog entry classifying
// channels, e.g. Temperature/°C.
type ChannelType struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:64;not null;uniqueIndex:uniq_type_name_unit,priority:1" json:"name"`
	Unit        string `gorm:"size:16;not null;uniqueIndex:uniq_type_name_unit,priority:2" json:"unit"`
	Description string `gorm:"size:256" json:"description,omitempty"`
}

// Channel is a named, typed time series scoped to exactly one device.
// (device_id, label) identifies at most one channel; the unique index is
// what serializes concurrent first-writes of the same label.
type Channel struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	DeviceID      int64  `gorm:"not null;uniqueIndex:uniq_device_label,priority:1" json:"device_id"`
	Label         string `gorm:"size:64;not null;uniqueIndex:uniq_device_label,priority:2" json:"label"`
	ChannelTypeID int64  `gorm:"not null" json:"-"`

	// Expected value bounds, used for alerting. Not enforced on ingestion.
	ExpectedMin *float64 `json:"expected_min,omitempty"`
	ExpectedMax *float64 `json:"expected_max,omitempty"`

	// Associations
	Device      Device      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ChannelType ChannelType `json:"type"`
}
