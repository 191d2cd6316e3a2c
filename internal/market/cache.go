package market

import (
	"sync"
	"time"
)

// Cache is a TTL cache of per-market venue metadata, filled when markets
// are listed and read when they are quoted.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry[V any] struct {
	data      V
	fetchedAt time.Time
}

func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]cacheEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache[V]) Get(id string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok || c.now().Sub(entry.fetchedAt) > c.ttl {
		var zero V
		return zero, false
	}
	return entry.data, true
}

// Replace drops every entry and stores the given set.
func (c *Cache[V]) Replace(items map[string]V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries = make(map[string]cacheEntry[V], len(items))
	for id, v := range items {
		c.entries[id] = cacheEntry[V]{data: v, fetchedAt: now}
	}
}

// Len returns the number of non-expired entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, entry := range c.entries {
		if now.Sub(entry.fetchedAt) <= c.ttl {
			n++
		}
	}
	return n
}
