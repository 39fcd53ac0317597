// Package cache provides the injectable get-or-compute cache used for agent
// preference and utility data. Engines receive a Cache instance instead of
// reaching into a process-wide map, so tests can control and reset cached
// state, and agent updates can invalidate precisely.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss reports whether err is a cache miss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// ComputeFunc produces a value for a key on miss.
type ComputeFunc func(ctx context.Context) (any, error)

// Cache is a keyed value cache with TTL and explicit invalidation.
type Cache interface {
	// Get returns the cached value or ErrCacheMiss.
	Get(ctx context.Context, key string) (any, error)

	// Set stores a value with the given TTL (0 uses the default).
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// GetOrCompute returns the cached value, computing and storing it on
	// miss. Concurrent callers for the same key may both compute; the
	// last write wins.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn ComputeFunc) (any, error)

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix removes every key with the prefix. Used to invalidate
	// all cached data for one agent.
	DeletePrefix(ctx context.Context, prefix string) error

	// Close releases resources.
	Close() error
}
