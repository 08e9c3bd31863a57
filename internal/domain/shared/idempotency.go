package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of requests that have already been applied,
// so a transformation submitted twice with the same source reference runs once.
type IdempotencyStore interface {
	// Claim marks key as taken for ttl.
	// Returns true if the key was newly claimed, false if it was already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees a claimed key, used when the guarded transaction rolled back.
	Release(ctx context.Context, key string) error

	// IsClaimed reports whether key is currently held
	IsClaimed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a claimed key is remembered.
	// Default: 24 hours
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
