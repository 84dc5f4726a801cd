// Package cache provides the memoization backends injected into the detector,
// the token metadata resolver and the depth service.
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-serializable values with a TTL.
type Cache interface {
	// Get decodes the value for key into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
}
