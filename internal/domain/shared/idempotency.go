package shared

import (
	"context"
	"time"
)

// IdempotencyStore records idempotency keys that have entered processing.
// It is a fast-path duplicate guard in front of the persistent unique-key
// constraint, shared across instances when backed by Redis.
type IdempotencyStore interface {
	// MarkProcessed marks a key as seen with a TTL.
	// Returns true if the key was newly marked, false if already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a key has already been seen
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a seen key stays in the fast-path store. The
	// persistent unique index remains authoritative after expiry.
	TTL time.Duration

	// Enabled toggles the fast-path guard
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
