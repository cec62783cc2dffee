package cache

import (
	"context"
	"log/slog"
	"time"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	// KeyPrefix namespaces every key this program writes to Redis
	KeyPrefix = "nostr-torrent:"

	defaultMaxEntries = 10000
	cleanupInterval   = 2 * time.Minute
)

// Options selects and sizes a backend
type Options struct {
	Backend    string
	RedisURL   string
	MaxEntries int
}

// Open builds the configured backend. A Redis backend that cannot be reached
// falls back to memory with a warning; the returned name is what is in use.
func Open(ctx context.Context, opts Options) (Backend, string) {
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	if opts.Backend == BackendRedis && opts.RedisURL != "" {
		rc, err := NewRedisCache(ctx, opts.RedisURL, KeyPrefix)
		if err == nil {
			slog.Info("cache: redis backend ready")
			return rc, BackendRedis
		}
		slog.Warn("cache: redis unavailable, using memory", "error", err)
	}

	slog.Info("cache: memory backend ready", "max_entries", maxEntries)
	return NewMemoryCache(maxEntries, cleanupInterval), BackendMemory
}
