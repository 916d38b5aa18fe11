package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that were already handled. It is a fast
// path in front of the database uniqueness constraints, never a replacement
// for them: a store miss must still be safe.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}
