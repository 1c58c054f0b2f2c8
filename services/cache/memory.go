package cachesvc

import (
	"sync"
	"time"

	"github.com/trezcool/shule/core"
)

type entry struct {
	val       interface{}
	expiresAt time.Time
}

// MemoryCache is an in-process key-value store with per-entry TTL. Expired
// entries are dropped lazily on read; entries never refresh on access, they
// only expire.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry

	nowFunc func() time.Time // mockable
}

var _ core.Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
}

func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	ent, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.nowFunc().After(ent.expiresAt) {
		c.Delete(key)
		return nil, false
	}
	return ent.val, true
}

func (c *MemoryCache) Set(key string, val interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{val: val, expiresAt: c.nowFunc().Add(ttl)}
	c.mu.Unlock()
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
