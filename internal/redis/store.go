// Package redis provides the storage backends of the reference-data cache:
// an in-memory store for a single process and a Redis store that lets several
// portal processes on one workstation pool share reference data.
package redis

import (
	"context"
	"time"
)

// Kind names a reference-data collection.
type Kind string

const (
	KindCustomers   Kind = "customers"
	KindUsers       Kind = "users"
	KindUsersByRole Kind = "users_by_role"
	KindGroups      Kind = "groups"
)

// Key addresses one cache entry. Variant distinguishes the per-role user
// lists and is empty for every other kind.
type Key struct {
	Kind    Kind
	Variant string
}

// String renders the key for logs.
func (k Key) String() string {
	if k.Variant == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + k.Variant
}

// Entry is a stored payload with its capture time.
type Entry struct {
	// Payload is the JSON-encoded collection.
	Payload []byte `json:"payload"`
	// StoredAt is when the payload was captured.
	StoredAt time.Time `json:"stored_at"`
}

// Store defines the storage operations used by the reference cache.
// Freshness is judged by the caller from Entry.StoredAt; the ttl passed to
// Set only bounds how long a backend keeps the data around.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry for key. found is false when nothing is stored.
	Get(ctx context.Context, key Key) (entry Entry, found bool, err error)

	// Set replaces the entry for key.
	Set(ctx context.Context, key Key, entry Entry, ttl time.Duration) error

	// DeleteKinds removes every entry of the given kinds, including all
	// variants, as one atomic operation.
	DeleteKinds(ctx context.Context, kinds ...Kind) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
