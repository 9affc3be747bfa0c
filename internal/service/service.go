package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"heatwatch-backend/internal/alert"
	"heatwatch-backend/internal/credential"
	"heatwatch-backend/internal/model"
	"heatwatch-backend/internal/provision"
	"heatwatch-backend/internal/registry"
	"heatwatch-backend/internal/series"
)

// ErrEmptyPayload is returned when an authenticated write request persisted
// zero readings. Distinct from an authentication failure.
var ErrEmptyPayload = errors.New("no readings persisted")

// Alerter dispatches out-of-range alerts. Satisfied by *alert.WorkerPool.
type Alerter interface {
	Dispatch(alert.Job)
}

// Service is the stateless request-facing orchestrator over the credential
// store, registry, provisioner and series store.
type Service struct {
	creds   *credential.Store
	reg     *registry.Registry
	prov    *provision.Provisioner
	series  *series.Store
	alerter Alerter
	log     *zap.Logger
}

// New creates the orchestrator. alerter may be nil to disable alerting.
func New(creds *credential.Store, reg *registry.Registry, prov *provision.Provisioner, st *series.Store, alerter Alerter, log *zap.Logger) *Service {
	return &Service{creds: creds, reg: reg, prov: prov, series: st, alerter: alerter, log: log}
}

// PersistedReading reports one stored reading back to the writer.
type PersistedReading struct {
	ID           int64     `json:"id"`
	DeviceID     int64     `json:"device"`
	ChannelLabel string    `json:"channel_label"`
	Value        float64   `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
}

// IngestResult is the per-request outcome of a write: what was persisted and
// which fields were rejected.
type IngestResult struct {
	Persisted   []PersistedReading `json:"readings"`
	FieldErrors map[string]string  `json:"field_errors,omitempty"`
}

// Ingest authenticates the writer, provisions channels for unseen labels and
// appends one reading per usable payload field. Authentication failure is
// terminal; field failures are collected and do not abort the remaining
// fields. Null, "null" and empty-string values are silently skipped.
func (s *Service) Ingest(ctx context.Context, deviceID int64, authHeader string, payload map[string]any) (*IngestResult, error) {
	device, err := s.creds.Validate(ctx, deviceID, authHeader, credential.ScopeWrite)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{FieldErrors: make(map[string]string)}

	// Deterministic field order keeps equal-timestamp readings in a stable
	// insertion order.
	labels := make([]string, 0, len(payload))
	for label := range payload {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		value, ok, reason := coerceValue(payload[label])
		if !ok {
			if reason != "" {
				result.FieldErrors[label] = reason
			}
			continue
		}

		channel, err := s.prov.ResolveOrCreate(ctx, device, label)
		if err != nil {
			s.log.Error("channel provisioning failed",
				zap.Int64("device_id", device.ID),
				zap.String("label", label),
				zap.Error(err))
			result.FieldErrors[label] = "failed to provision channel"
			continue
		}

		reading, err := s.series.Append(ctx, channel, value)
		if err != nil {
			if errors.Is(err, series.ErrNonFinite) {
				result.FieldErrors[label] = "value is not a finite number"
			} else {
				s.log.Error("append failed",
					zap.Int64("device_id", device.ID),
					zap.String("label", label),
					zap.Error(err))
				result.FieldErrors[label] = "failed to store reading"
			}
			continue
		}

		result.Persisted = append(result.Persisted, PersistedReading{
			ID:           reading.ID,
			DeviceID:     device.ID,
			ChannelLabel: channel.Label,
			Value:        reading.Value,
			CreatedAt:    reading.CreatedAt,
		})
		s.maybeAlert(device, channel, value)
	}

	if len(result.FieldErrors) == 0 {
		result.FieldErrors = nil
	}
	if len(result.Persisted) == 0 {
		return result, ErrEmptyPayload
	}
	return result, nil
}

// coerceValue classifies one payload field. ok means store it; a non-empty
// reason means report it as a field error; neither means skip silently.
func coerceValue(raw any) (value float64, ok bool, reason string) {
	switch v := raw.(type) {
	case nil:
		return 0, false, ""
	case float64:
		return v, true, ""
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || strings.EqualFold(trimmed, "null") {
			return 0, false, ""
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false, "value is not numeric"
		}
		return f, true, ""
	default:
		return 0, false, "value is not numeric"
	}
}

func (s *Service) maybeAlert(device *model.Device, channel *model.Channel, value float64) {
	if s.alerter == nil {
		return
	}
	below := channel.ExpectedMin != nil && value < *channel.ExpectedMin
	above := channel.ExpectedMax != nil && value > *channel.ExpectedMax
	if !below && !above {
		return
	}
	s.alerter.Dispatch(alert.Job{
		TenantID:   device.TenantID,
		DeviceName: device.Name,
		Label:      channel.Label,
		Unit:       channel.ChannelType.Unit,
		Value:      value,
	})
}

// DeviceData authenticates a reader and returns the device's recent readings
// grouped per channel, each group ascending by timestamp.
func (s *Service) DeviceData(ctx context.Context, deviceID int64, authHeader string, limit int) ([]series.ChannelSeries, error) {
	device, err := s.creds.Validate(ctx, deviceID, authHeader, credential.ScopeRead)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.series.RecentByChannel(ctx, device.ID, limit)
}

// DeviceSummary is one device with its current value per channel.
type DeviceSummary struct {
	Device model.Device           `json:"device"`
	Latest []series.ChannelSeries `json:"latest"`
}

// DashboardDevices resolves a tenant by its dashboard capability token and
// returns its active devices, each with the latest reading per channel.
func (s *Service) DashboardDevices(ctx context.Context, token string) ([]DeviceSummary, error) {
	tenant, err := s.reg.ResolveTenantByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	devices, err := s.reg.DevicesOf(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]DeviceSummary, 0, len(devices))
	for _, device := range devices {
		latest, err := s.series.Latest(ctx, device.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, DeviceSummary{Device: device, Latest: latest})
	}
	return summaries, nil
}
