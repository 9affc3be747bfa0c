package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"heatwatch-backend/internal/alert"
	"heatwatch-backend/internal/credential"
	"heatwatch-backend/internal/model"
	"heatwatch-backend/internal/provision"
	"heatwatch-backend/internal/registry"
	"heatwatch-backend/internal/series"
)

type recordingAlerter struct {
	jobs []alert.Job
}

func (r *recordingAlerter) Dispatch(j alert.Job) {
	r.jobs = append(r.jobs, j)
}

type testEnv struct {
	db      *gorm.DB
	svc     *Service
	reg     *registry.Registry
	alerter *recordingAlerter
	tenant  *model.Tenant
	device  *model.Device
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Tenant{}, &model.Device{}, &model.ChannelType{},
		&model.Channel{}, &model.Reading{}, &model.PushSubscription{},
	))

	log := zap.NewNop()
	creds := credential.NewStore(db)
	reg := registry.NewRegistry(db, creds, false, log)
	prov := provision.NewProvisioner(db)
	store := series.NewStore(db)
	alerter := &recordingAlerter{}
	svc := New(creds, reg, prov, store, alerter, log)

	ctx := context.Background()
	tenant, err := reg.CreateTenant(ctx, "Acme", "ops@acme.test", "")
	require.NoError(t, err)
	device, err := reg.CreateDevice(ctx, tenant.ID, "HX-1", "Boiler room")
	require.NoError(t, err)

	return &testEnv{db: db, svc: svc, reg: reg, alerter: alerter, tenant: tenant, device: device}
}

func writeHeader(d *model.Device) string { return "Token " + d.WriteSecret }
func readHeader(d *model.Device) string  { return "Token " + d.ReadSecret }

func TestIngestRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{
		"T1_In": 42.5,
	})
	require.NoError(t, err)
	require.Len(t, result.Persisted, 1)
	assert.Empty(t, result.FieldErrors)
	assert.Equal(t, "T1_In", result.Persisted[0].ChannelLabel)
	assert.InDelta(t, 42.5, result.Persisted[0].Value, 1e-9)

	groups, err := env.svc.DeviceData(ctx, env.device.ID, readHeader(env.device), 0)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "T1_In", groups[0].Label)
	assert.Equal(t, "°C", groups[0].Unit, "leading T infers a temperature channel")
	require.Len(t, groups[0].Points, 1)
	assert.InDelta(t, 42.5, groups[0].Points[0].Value, 1e-9)
}

func TestIngestRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := map[string]string{
		"read secret on write path": readHeader(env.device),
		"unknown secret":            "Token not-a-secret",
		"missing header":            "",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.Ingest(ctx, env.device.ID, header, map[string]any{"T1": 1.0})
			assert.ErrorIs(t, err, credential.ErrAuthenticationFailed)
		})
	}

	var count int64
	env.db.Model(&model.Reading{}).Count(&count)
	assert.Zero(t, count, "nothing persisted on auth failure")
}

func TestIngestInactiveDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.reg.SetDeviceActive(ctx, env.device.ID, false)
	require.NoError(t, err)

	_, err = env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{"T1": 1.0})
	assert.ErrorIs(t, err, credential.ErrAuthenticationFailed)

	// Reads are unaffected by deactivation.
	_, err = env.svc.DeviceData(ctx, env.device.ID, readHeader(env.device), 0)
	assert.NoError(t, err)
}

func TestIngestPartialPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{
		"T1_In":  42.5,
		"T2_Out": nil,
		"P1":     "null",
		"F1":     "",
		"P2":     "1013.25",
		"Status": "running",
		"Flags":  []any{1, 2},
	})
	require.NoError(t, err)
	require.Len(t, result.Persisted, 2)
	assert.Equal(t, "P2", result.Persisted[0].ChannelLabel)
	assert.Equal(t, "T1_In", result.Persisted[1].ChannelLabel)
	assert.InDelta(t, 1013.25, result.Persisted[0].Value, 1e-9)

	require.Len(t, result.FieldErrors, 2)
	assert.Equal(t, "value is not numeric", result.FieldErrors["Status"])
	assert.Equal(t, "value is not numeric", result.FieldErrors["Flags"])

	// Skipped fields never provision channels.
	var channels int64
	env.db.Model(&model.Channel{}).Count(&channels)
	assert.EqualValues(t, 2, channels)
}

func TestIngestEmptyPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("no fields", func(t *testing.T) {
		result, err := env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{})
		assert.ErrorIs(t, err, ErrEmptyPayload)
		assert.Empty(t, result.Persisted)
	})

	t.Run("all fields rejected", func(t *testing.T) {
		result, err := env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{
			"Status": "running",
		})
		assert.ErrorIs(t, err, ErrEmptyPayload)
		assert.Equal(t, "value is not numeric", result.FieldErrors["Status"])
	})

	t.Run("all fields skipped", func(t *testing.T) {
		result, err := env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{
			"T1": nil,
		})
		assert.ErrorIs(t, err, ErrEmptyPayload)
		assert.Empty(t, result.FieldErrors)
	})
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		value  float64
		ok     bool
		reason string
	}{
		{name: "float", raw: 42.5, value: 42.5, ok: true},
		{name: "numeric string", raw: "98.6", value: 98.6, ok: true},
		{name: "padded numeric string", raw: " 7 ", value: 7, ok: true},
		{name: "nil skipped", raw: nil},
		{name: "empty string skipped", raw: ""},
		{name: "null string skipped", raw: "null"},
		{name: "NULL string skipped", raw: "NULL"},
		{name: "word", raw: "running", reason: "value is not numeric"},
		{name: "bool", raw: true, reason: "value is not numeric"},
		{name: "object", raw: map[string]any{"a": 1}, reason: "value is not numeric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok, reason := coerceValue(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
			if tt.ok {
				assert.InDelta(t, tt.value, value, 1e-9)
			}
		})
	}
}

func TestIngestDispatchesAlerts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// First write provisions the channel, then bounds are set on it.
	_, err := env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{"T1_In": 50.0})
	require.NoError(t, err)
	require.Empty(t, env.alerter.jobs, "no bounds, no alert")

	min, max := 10.0, 90.0
	require.NoError(t, env.db.Model(&model.Channel{}).
		Where("device_id = ? AND label = ?", env.device.ID, "T1_In").
		Updates(map[string]any{"expected_min": min, "expected_max": max}).Error)

	_, err = env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{"T1_In": 50.0})
	require.NoError(t, err)
	assert.Empty(t, env.alerter.jobs, "in-range value stays quiet")

	_, err = env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{"T1_In": 95.5})
	require.NoError(t, err)
	require.Len(t, env.alerter.jobs, 1)
	job := env.alerter.jobs[0]
	assert.Equal(t, env.tenant.ID, job.TenantID)
	assert.Equal(t, "HX-1", job.DeviceName)
	assert.Equal(t, "T1_In", job.Label)
	assert.Equal(t, "°C", job.Unit)
	assert.InDelta(t, 95.5, job.Value, 1e-9)

	_, err = env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{"T1_In": 2.0})
	require.NoError(t, err)
	assert.Len(t, env.alerter.jobs, 2, "below minimum also alerts")
}

func TestDeviceDataCrossDeviceIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	other, err := env.reg.CreateDevice(ctx, env.tenant.ID, "HX-2", "")
	require.NoError(t, err)

	_, err = env.svc.DeviceData(ctx, env.device.ID, readHeader(other), 0)
	assert.ErrorIs(t, err, credential.ErrAuthenticationFailed)
}

func TestDashboardDevices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{"T1_In": 10.0})
	require.NoError(t, err)
	_, err = env.svc.Ingest(ctx, env.device.ID, writeHeader(env.device), map[string]any{"T1_In": 20.0})
	require.NoError(t, err)

	idle, err := env.reg.CreateDevice(ctx, env.tenant.ID, "HX-2", "")
	require.NoError(t, err)

	summaries, err := env.svc.DashboardDevices(ctx, env.tenant.DashboardToken)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, env.device.ID, summaries[0].Device.ID)
	require.Len(t, summaries[0].Latest, 1)
	require.Len(t, summaries[0].Latest[0].Points, 1)
	assert.InDelta(t, 20.0, summaries[0].Latest[0].Points[0].Value, 1e-9, "only the newest reading per channel")

	assert.Equal(t, idle.ID, summaries[1].Device.ID)
	assert.Empty(t, summaries[1].Latest)

	t.Run("unknown token", func(t *testing.T) {
		_, err := env.svc.DashboardDevices(ctx, "no-such-token")
		assert.ErrorIs(t, err, registry.ErrNotFound)
	})

	t.Run("inactive device hidden", func(t *testing.T) {
		_, err := env.reg.SetDeviceActive(ctx, idle.ID, false)
		require.NoError(t, err)
		summaries, err := env.svc.DashboardDevices(ctx, env.tenant.DashboardToken)
		require.NoError(t, err)
		assert.Len(t, summaries, 1)
	})
}
