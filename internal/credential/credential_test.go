package credential

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"heatwatch-backend/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Tenant{}, &model.Device{}))
	return db
}

func seedDevice(t *testing.T, db *gorm.DB, active bool) *model.Device {
	t.Helper()
	tenant := model.Tenant{Name: "Acme Thermal", ContactEmail: "ops@acme.test", DashboardToken: "token-" + t.Name()}
	require.NoError(t, db.Create(&tenant).Error)

	device := model.Device{
		TenantID:    tenant.ID,
		Name:        "HX-1",
		WriteSecret: "write-" + t.Name(),
		ReadSecret:  "read-" + t.Name(),
		IsActive:    active,
	}
	require.NoError(t, db.Create(&device).Error)
	return &device
}

func TestExtractSecret(t *testing.T) {
	testCases := []struct {
		name     string
		header   string
		expected string
	}{
		{"raw secret", "abc-123", "abc-123"},
		{"token prefix", "Token abc-123", "abc-123"},
		{"bearer prefix", "Bearer abc-123", "abc-123"},
		{"extra whitespace", "  Token   abc-123  ", "abc-123"},
		{"empty", "", ""},
		{"prefix only", "Token ", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractSecret(tc.header))
		})
	}
}

func TestIssueUniqueness(t *testing.T) {
	store := NewStore(nil)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		secret := store.Issue()
		assert.NotEmpty(t, secret)
		assert.False(t, seen[secret], "issued secret repeated")
		seen[secret] = true
	}
}

func TestValidate(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	device := seedDevice(t, db, true)
	ctx := context.Background()

	t.Run("write secret with write scope", func(t *testing.T) {
		got, err := store.Validate(ctx, device.ID, "Token "+device.WriteSecret, ScopeWrite)
		require.NoError(t, err)
		assert.Equal(t, device.ID, got.ID)
	})

	t.Run("read secret with read scope", func(t *testing.T) {
		got, err := store.Validate(ctx, device.ID, device.ReadSecret, ScopeRead)
		require.NoError(t, err)
		assert.Equal(t, device.ID, got.ID)
	})

	t.Run("read secret rejected for write scope", func(t *testing.T) {
		_, err := store.Validate(ctx, device.ID, device.ReadSecret, ScopeWrite)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("write secret rejected for read scope", func(t *testing.T) {
		_, err := store.Validate(ctx, device.ID, device.WriteSecret, ScopeRead)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("unknown secret rejected", func(t *testing.T) {
		_, err := store.Validate(ctx, device.ID, "Bearer nope", ScopeWrite)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("missing secret rejected", func(t *testing.T) {
		_, err := store.Validate(ctx, device.ID, "", ScopeWrite)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("unknown device rejected", func(t *testing.T) {
		_, err := store.Validate(ctx, device.ID+999, device.WriteSecret, ScopeWrite)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}

func TestValidateCrossDevice(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	first := seedDevice(t, db, true)
	other := model.Device{
		TenantID:    first.TenantID,
		Name:        "HX-2",
		WriteSecret: "other-write",
		ReadSecret:  "other-read",
		IsActive:    true,
	}
	require.NoError(t, db.Create(&other).Error)

	// A valid secret presented against a different device id must fail.
	_, err := store.Validate(ctx, first.ID, other.WriteSecret, ScopeWrite)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = store.Validate(ctx, first.ID, other.ReadSecret, ScopeRead)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestValidateInactiveDevice(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	device := seedDevice(t, db, false)
	ctx := context.Background()

	// Writes are rejected regardless of secret correctness.
	_, err := store.Validate(ctx, device.ID, device.WriteSecret, ScopeWrite)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	// Reads are not gated on the active flag.
	got, err := store.Validate(ctx, device.ID, device.ReadSecret, ScopeRead)
	require.NoError(t, err)
	assert.Equal(t, device.ID, got.ID)
}
