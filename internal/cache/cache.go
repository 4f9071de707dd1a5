package cache

import (
	"context"
	"time"
)

// Store is the key-value and list surface the engine needs for health
// snapshots and activity logs. Both are best-effort side caches: a lost
// write is tolerated because every value can be recomputed from source
// data.
type Store interface {
	// Get returns the raw value for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value with a TTL.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// PushList prepends an entry to a list, trims it to maxLen and
	// refreshes the list TTL. Oldest entries fall off the end.
	PushList(ctx context.Context, key string, value string, maxLen int, ttl time.Duration) error
	// RangeList returns up to limit entries, newest first.
	RangeList(ctx context.Context, key string, limit int) ([]string, error)
}
