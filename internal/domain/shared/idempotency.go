package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of requests that were already handled
type IdempotencyStore interface {
	// Remember stores value under key with a TTL.
	// Returns true if the key was newly stored, false if it already existed.
	Remember(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Lookup returns the value stored under key, if any
	Lookup(ctx context.Context, key string) (string, bool, error)

	// Forget removes a key, used when the guarded operation failed
	Forget(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
