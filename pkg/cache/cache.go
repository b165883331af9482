// Package cache stores encoded export artifacts keyed by content hash.
//
// Rasterizing a large canvas at a high export scale is the most expensive
// thing kitbash does, and repeated exports of an unchanged project are
// common (the CLI re-exports after every edit of an unrelated file, the HTTP
// service serves the same preview many times). The [Cache] interface has
// three backends:
//
//   - [NullCache] disables caching.
//   - [FileCache] stores entries as JSON files, for the CLI.
//   - [RedisCache] stores entries in Redis, for the HTTP service.
//
// Keys are built by a [Keyer] from a hash of everything that influences the
// output, so a hit is always byte-for-byte what a fresh run would produce.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by caches that can drop all of their entries.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Clear empties c if its backend supports it and reports whether it did.
func Clear(ctx context.Context, c Cache) (bool, error) {
	cl, ok := c.(Clearer)
	if !ok {
		return false, nil
	}
	return true, cl.Clear(ctx)
}

// DefaultTTL is how long artifacts stay cached unless configured otherwise.
const DefaultTTL = 7 * 24 * time.Hour
