package cache

import (
	"context"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryCache implements Backend on a concurrent map. Expired entries are
// dropped lazily and by a periodic sweep that also enforces maxSize.
type MemoryCache struct {
	data            *xsync.MapOf[string, memoryEntry]
	maxSize         int
	cleanupInterval time.Duration
	stopCh          chan struct{}
	now             func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache(maxSize int, cleanupInterval time.Duration) *MemoryCache {
	mc := &MemoryCache{
		data:            xsync.NewMapOf[string, memoryEntry](),
		maxSize:         maxSize,
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
		now:             time.Now,
	}
	go mc.cleanupLoop()
	return mc
}

func (m *MemoryCache) load(key string, now time.Time) ([]byte, bool) {
	entry, ok := m.data.Load(key)
	if !ok {
		return nil, false
	}
	if now.After(entry.expiresAt) {
		m.data.Delete(key)
		return nil, false
	}
	return entry.value, true
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.load(key, m.now())
	return v, ok, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data.Store(key, memoryEntry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *MemoryCache) SetMultiple(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	expiresAt := m.now().Add(ttl)
	for key, value := range items {
		m.data.Store(key, memoryEntry{value: value, expiresAt: expiresAt})
	}
	return nil
}

func (m *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Len counts stored entries, expired ones included until the next sweep
func (m *MemoryCache) Len() int {
	return m.data.Size()
}

func (m *MemoryCache) Close() error {
	close(m.stopCh)
	return nil
}

func (m *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *MemoryCache) cleanup() {
	now := m.now()
	type live struct {
		key       string
		expiresAt time.Time
	}
	var entries []live

	m.data.Range(func(key string, entry memoryEntry) bool {
		if now.After(entry.expiresAt) {
			m.data.Delete(key)
		} else {
			entries = append(entries, live{key, entry.expiresAt})
		}
		return true
	})

	// Over capacity: evict whatever expires soonest
	if m.maxSize > 0 && len(entries) > m.maxSize {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].expiresAt.Before(entries[j].expiresAt)
		})
		for _, e := range entries[:len(entries)-m.maxSize] {
			m.data.Delete(e.key)
		}
	}
}
