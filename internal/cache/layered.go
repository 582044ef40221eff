package cache

import (
	"errors"
	"time"
)

// LayeredCache serves vectors from memory and keeps a disk copy that survives restarts
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewLayeredCache stacks memory over disk
func NewLayeredCache(memory *MemoryCache, disk *DiskCache) *LayeredCache {
	return &LayeredCache{memory: memory, disk: disk}
}

// Get checks memory, then disk; disk hits are promoted with the memory default TTL
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}
	val, found := c.disk.Get(key)
	if !found {
		return nil, false
	}
	_ = c.memory.Set(key, val, 0)
	return val, true
}

// Set writes through to both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	_ = c.memory.Set(key, value, ttl)
	return c.disk.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}

// Stats reports the memory layer
func (c *LayeredCache) Stats() Stats {
	return c.memory.Stats()
}

// Close closes both layers
func (c *LayeredCache) Close() error {
	return errors.Join(c.memory.Close(), c.disk.Close())
}
