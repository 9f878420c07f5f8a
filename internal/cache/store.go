package cache

import (
	"context"
	"time"
)

// Store is the shared cache surface. The report summary uses Set/Get/Delete,
// the rate limiter uses IncrementWithTTL. Redis backs it in production,
// MemoryStore in tests and single-instance deployments.
type Store interface {
	// IncrementWithTTL bumps a counter, starting a new window with the given
	// TTL on first increment. It returns the updated count and the time left
	// in the current window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the stored value and whether the key was present. A missing
	// or expired key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	Delete(ctx context.Context, keys ...string) error
}
