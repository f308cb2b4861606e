package repository

import (
	"context"

	"quakescope/internal/model"
)

// RegistrationStore is the guarded collection of device registrations.
// Every mutation rewrites the whole collection through a RegistrationBackend.
type RegistrationStore interface {
	// Register upserts a token, merging non-empty metadata into the existing entry
	Register(ctx context.Context, token string, metadata map[string]string) (*model.Registration, error)
	// UpdatePreferences replaces the geofence preferences wholesale
	UpdatePreferences(ctx context.Context, token string, prefs model.PreferencesInput) (*model.Registration, error)
	// RecordDelivery appends eventID to the token's delivery history
	RecordDelivery(ctx context.Context, token, eventID string) error
	// Snapshot returns a detached deep copy of every registration
	Snapshot(ctx context.Context) (model.Snapshot, error)
	// ListTokens returns every registered token in insertion order
	ListTokens(ctx context.Context) ([]string, error)
}

// RegistrationBackend persists the encoded registration collection as one document.
// Read returns nil data when nothing has been stored yet.
type RegistrationBackend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}
