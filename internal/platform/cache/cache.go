package cache

import (
	"context"
	"time"
)

// Cache is the key-value contract used for derived, rebuildable data such as
// unread counters. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A non-positive ttl means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Incr atomically increments the integer at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)

	Close() error
}

// ErrMiss signals a cache miss, as distinct from a transport error.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }
