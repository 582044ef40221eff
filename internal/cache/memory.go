package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Stats reports cache effectiveness
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Items  int    `json:"items"`
}

// MemoryCache keeps embedding vectors in process with per-entry expiry.
// A positive maxItems bounds the entry count; new keys are dropped once it is reached.
type MemoryCache struct {
	entries  *gocache.Cache
	maxItems int
	hits     atomic.Uint64
	misses   atomic.Uint64
}

// NewMemoryCache creates a cache whose janitor sweeps expired vectors every cleanupInterval
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration, maxItems int) *MemoryCache {
	return &MemoryCache{
		entries:  gocache.New(defaultTTL, cleanupInterval),
		maxItems: maxItems,
	}
}

// Get returns a copy of the cached bytes
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.entries.Get(key)
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	b := val.([]byte)
	return append([]byte(nil), b...), true
}

// Set stores a copy of value; a zero TTL uses the cache default
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if c.maxItems > 0 && c.entries.ItemCount() >= c.maxItems {
		if _, exists := c.entries.Get(key); !exists {
			c.entries.DeleteExpired()
			if c.entries.ItemCount() >= c.maxItems {
				return nil
			}
		}
	}
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.entries.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) error {
	c.entries.Delete(key)
	return nil
}

// Clear drops every entry and resets the counters
func (c *MemoryCache) Clear() error {
	c.entries.Flush()
	c.hits.Store(0)
	c.misses.Store(0)
	return nil
}

// Stats returns the hit and miss counters
func (c *MemoryCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Items: c.entries.ItemCount()}
}

// Close flushes the cache
func (c *MemoryCache) Close() error {
	c.entries.Flush()
	return nil
}
