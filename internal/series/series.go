package series

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"heatwatch-backend/internal/model"
)

// ErrNonFinite is returned when a value cannot be stored as a finite float.
var ErrNonFinite = errors.New("reading value is not a finite number")

// Point is one reading in a chart-friendly series.
type Point struct {
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// ChannelSeries is an ordered group of readings for one channel, sorted
// ascending by timestamp for chart consumption.
type ChannelSeries struct {
	Label  string  `json:"label"`
	Unit   string  `json:"unit"`
	Points []Point `json:"points"`

	channelID int64
}

// Store is the append-only reading store.
type Store struct {
	db *gorm.DB
}

// NewStore creates a series store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append stores one immutable reading on the channel. The timestamp is
// server-assigned at insert.
func (s *Store) Append(ctx context.Context, channel *model.Channel, value float64) (*model.Reading, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, ErrNonFinite
	}
	reading := model.Reading{
		DeviceID:  channel.DeviceID,
		ChannelID: channel.ID,
		Value:     value,
	}
	if err := s.db.WithContext(ctx).Create(&reading).Error; err != nil {
		return nil, fmt.Errorf("failed to append reading: %w", err)
	}
	return &reading, nil
}

// Recent returns the limit most recent readings across all of the device's
// channels, newest first. Equal timestamps are tie-broken by insertion order.
func (s *Store) Recent(ctx context.Context, deviceID int64, limit int) ([]model.Reading, error) {
	var readings []model.Reading
	err := s.db.WithContext(ctx).
		Preload("Channel").
		Preload("Channel.ChannelType").
		Where("device_id = ?", deviceID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&readings).Error
	return readings, err
}

// RecentByChannel returns, for each channel of the device, its most recent
// perChannel readings, grouped by label with each group re-sorted ascending.
func (s *Store) RecentByChannel(ctx context.Context, deviceID int64, perChannel int) ([]ChannelSeries, error) {
	var channels []model.Channel
	err := s.db.WithContext(ctx).
		Preload("ChannelType").
		Where("device_id = ?", deviceID).
		Order("id ASC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}

	var all []model.Reading
	for i := range channels {
		var readings []model.Reading
		err := s.db.WithContext(ctx).
			Where("channel_id = ?", channels[i].ID).
			Order("created_at DESC, id DESC").
			Limit(perChannel).
			Find(&readings).Error
		if err != nil {
			return nil, err
		}
		for j := range readings {
			readings[j].Channel = channels[i]
		}
		all = append(all, readings...)
	}
	return GroupByChannel(all), nil
}

// Latest returns exactly the single most recent reading per channel.
// Channels without readings are omitted.
func (s *Store) Latest(ctx context.Context, deviceID int64) ([]ChannelSeries, error) {
	return s.RecentByChannel(ctx, deviceID, 1)
}

// Range is the arbitrary filtered read path, newest first. An empty label
// matches all channels; a zero since matches all time; limit <= 0 means
// unbounded.
func (s *Store) Range(ctx context.Context, deviceID int64, label string, since time.Time, limit int) ([]model.Reading, error) {
	q := s.db.WithContext(ctx).
		Preload("Channel").
		Preload("Channel.ChannelType").
		Where("readings.device_id = ?", deviceID)
	if label != "" {
		q = q.Joins("JOIN channels ON channels.id = readings.channel_id").
			Where("channels.label = ?", label)
	}
	if !since.IsZero() {
		q = q.Where("readings.created_at >= ?", since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var readings []model.Reading
	err := q.Order("readings.created_at DESC, readings.id DESC").Find(&readings).Error
	return readings, err
}

// GroupByChannel turns a newest-first flat list of readings (with channels
// preloaded) into per-label series sorted ascending by timestamp. Groups
// appear in the order their channels were created. Shared by every grouped
// read path.
func GroupByChannel(readings []model.Reading) []ChannelSeries {
	index := make(map[int64]int)
	var groups []ChannelSeries

	for _, r := range readings {
		i, seen := index[r.ChannelID]
		if !seen {
			i = len(groups)
			index[r.ChannelID] = i
			groups = append(groups, ChannelSeries{
				Label:     r.Channel.Label,
				Unit:      r.Channel.ChannelType.Unit,
				channelID: r.ChannelID,
			})
		}
		groups[i].Points = append(groups[i].Points, Point{Value: r.Value, CreatedAt: r.CreatedAt})
	}

	// Input is newest-first within each channel; reversing keeps insertion
	// order as the tie-break for equal timestamps.
	for i := range groups {
		pts := groups[i].Points
		for l, r := 0, len(pts)-1; l < r; l, r = l+1, r-1 {
			pts[l], pts[r] = pts[r], pts[l]
		}
	}

	// Groups appear in channel creation order.
	sort.Slice(groups, func(i, j int) bool { return groups[i].channelID < groups[j].channelID })
	return groups
}
