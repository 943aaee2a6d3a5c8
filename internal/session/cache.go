package session

import (
	"context"
	"sync"
	"time"
)

// Cache holds recently validated principals keyed by token hash. A cache
// miss or error always falls through to the session table.
type Cache interface {
	Get(ctx context.Context, key string) (*Principal, bool, error)
	Set(ctx context.Context, key string, p *Principal, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (NoopCache) Get(context.Context, string) (*Principal, bool, error)            { return nil, false, nil }
func (NoopCache) Set(context.Context, string, *Principal, time.Duration) error { return nil }
func (NoopCache) Delete(context.Context, string) error                         { return nil }

type memoryEntry struct {
	principal Principal
	expiresAt time.Time
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Principal, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	p := entry.principal
	return &p, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, p *Principal, ttl time.Duration) error {
	if p == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{principal: *p, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len is the number of entries, including ones that expired but were not
// read since.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
