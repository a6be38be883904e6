// Package cache provides the key/value store in front of article listings.
// Two backends implement Cache: Redis for deployments and an in-process LRU
// for single-node setups and tests.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-valued store with per-entry TTL and glob-pattern deletion.
// Patterns follow Redis MATCH syntax (`*` and `?`).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	// DeleteByPattern enumerates the keys matching pattern and deletes them,
	// returning how many were removed.
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
