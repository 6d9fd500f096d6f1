package shared

import (
	"context"
	"time"
)

// DedupStore provides atomic first-writer-wins reservations used to
// deduplicate repeated submissions within a short window. Reserving a key
// that is already held returns the value stored by the first writer, so a
// retrying client can be handed the originally created resource.
type DedupStore interface {
	// Reserve atomically associates value with key for the given TTL.
	// Returns ("", true) when the reservation was newly acquired, or the
	// previously stored value and false when the key was already held.
	Reserve(ctx context.Context, key, value string, ttl time.Duration) (existing string, acquired bool, err error)

	// Release drops a reservation so the key can be reserved again. Used to
	// roll back a reservation when the guarded operation fails.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
