package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"heatwatch-backend/internal/model"
)

// ErrEmptyLabel is returned when a channel label is blank after trimming.
var ErrEmptyLabel = errors.New("empty channel label")

// InferType maps a previously-unseen label to a channel type by its first
// character. Best-effort heuristic, applied exactly once: the label's type
// binding is fixed at first creation and never re-inferred.
func InferType(label string) (name, unit string) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return "Generic", "units"
	}
	switch strings.ToUpper(trimmed[:1]) {
	case "T":
		return "Temperature", "°C"
	case "P":
		return "Pressure", "kPa"
	case "F":
		return "Flow", "L/min"
	default:
		return "Generic", "units"
	}
}

// Provisioner finds or creates typed channel definitions for inbound labels.
type Provisioner struct {
	db *gorm.DB
}

// NewProvisioner creates a provisioner backed by the given database.
func NewProvisioner(db *gorm.DB) *Provisioner {
	return &Provisioner{db: db}
}

// ResolveOrCreate returns the channel for (device, label), creating it with
// an inferred type on first sight. The loser of a concurrent first-write
// race for the same label gets the surviving channel instead of an error.
func (p *Provisioner) ResolveOrCreate(ctx context.Context, device *model.Device, label string) (*model.Channel, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrEmptyLabel
	}

	if ch, err := p.lookup(ctx, device.ID, label); err == nil {
		return ch, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return p.create(ctx, device.ID, label)
}

// create inserts the channel with an inferred type. The insert does nothing
// on conflict with the (device_id, label) unique index and the row is
// re-read afterwards, so a concurrent creation of the same label cannot fail
// this call or leave a duplicate.
func (p *Provisioner) create(ctx context.Context, deviceID int64, label string) (*model.Channel, error) {
	typeName, unit := InferType(label)
	channelType, err := p.resolveOrCreateType(ctx, typeName, unit)
	if err != nil {
		return nil, err
	}

	channel := model.Channel{
		DeviceID:      deviceID,
		Label:         label,
		ChannelTypeID: channelType.ID,
	}
	err = p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "label"}},
			DoNothing: true,
		}).
		Create(&channel).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create channel %q: %w", label, err)
	}

	// Re-read unconditionally: on conflict the insert was a no-op and the
	// surviving row may differ from what this call attempted to write.
	return p.lookup(ctx, deviceID, label)
}

func (p *Provisioner) lookup(ctx context.Context, deviceID int64, label string) (*model.Channel, error) {
	var channel model.Channel
	err := p.db.WithContext(ctx).
		Preload("ChannelType").
		Where("device_id = ? AND label = ?", deviceID, label).
		First(&channel).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// resolveOrCreateType gets or creates the shared catalog entry for
// (name, unit), with the same upsert-then-reread shape as channel creation.
func (p *Provisioner) resolveOrCreateType(ctx context.Context, name, unit string) (*model.ChannelType, error) {
	channelType := model.ChannelType{Name: name, Unit: unit}
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}, {Name: "unit"}},
			DoNothing: true,
		}).
		Create(&channelType).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create channel type %s/%s: %w", name, unit, err)
	}

	var existing model.ChannelType
	err = p.db.WithContext(ctx).
		Where("name = ? AND unit = ?", name, unit).
		First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}
