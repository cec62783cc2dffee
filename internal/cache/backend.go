// Package cache stores recently seen announcements in memory or Redis.
package cache

import (
	"context"
	"time"
)

// Backend is a byte-oriented key/value store with per-key TTL
type Backend interface {
	// Get returns (value, found, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetMultiple(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Ping reports whether the store is reachable
	Ping(ctx context.Context) error
	Close() error
}
