package credential

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"heatwatch-backend/internal/model"
)

// ErrAuthenticationFailed is returned for every validation failure. A wrong
// secret, a scope mismatch, an unknown device and an inactive device are
// indistinguishable to the caller.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Scope identifies which of a device's two secrets a caller must present.
type Scope string

const (
	ScopeWrite Scope = "write"
	ScopeRead  Scope = "read"
)

// Store validates presented device secrets and issues new ones.
type Store struct {
	db *gorm.DB
}

// NewStore creates a credential store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Issue generates a new unguessable secret. UUIDv4 is backed by crypto/rand;
// uniqueness across the store is enforced by the unique indexes on the
// persisted columns.
func (s *Store) Issue() string {
	return uuid.NewString()
}

// ExtractSecret pulls the secret out of a caller-supplied header value,
// tolerating an optional scheme word ("Token x", "Bearer x") before it.
func ExtractSecret(header string) string {
	header = strings.TrimSpace(header)
	if _, rest, found := strings.Cut(header, " "); found {
		return strings.TrimSpace(rest)
	}
	return header
}

// Validate resolves the presented header against the stored secret of the
// given device for the required scope. Write scope additionally requires the
// device to be active; reads are served regardless of the active flag.
func (s *Store) Validate(ctx context.Context, deviceID int64, header string, scope Scope) (*model.Device, error) {
	secret := ExtractSecret(header)
	if secret == "" {
		return nil, ErrAuthenticationFailed
	}

	var device model.Device
	if err := s.db.WithContext(ctx).First(&device, deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}

	var expected string
	switch scope {
	case ScopeWrite:
		expected = device.WriteSecret
	case ScopeRead:
		expected = device.ReadSecret
	default:
		return nil, ErrAuthenticationFailed
	}

	if secret != expected {
		return nil, ErrAuthenticationFailed
	}
	if scope == ScopeWrite && !device.IsActive {
		return nil, ErrAuthenticationFailed
	}
	return &device, nil
}
