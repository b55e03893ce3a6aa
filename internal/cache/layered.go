package cache

import (
	"errors"
	"sync/atomic"
	"time"
)

// Stats counts lookups by the layer that answered them
type Stats struct {
	MemoryHits int64
	DiskHits   int64
	Misses     int64
}

// LayeredCache puts a memory layer in front of the disk cache. Disk hits are
// promoted so later lookups in the same run stay in memory.
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache

	memoryHits atomic.Int64
	diskHits   atomic.Int64
	misses     atomic.Int64
}

// NewLayeredCache creates a layered cache rooted at diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		c.memoryHits.Add(1)
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		c.diskHits.Add(1)
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	c.misses.Add(1)
	return nil, false
}

// Set writes through to both layers. A zero ttl lets each layer apply its own
// default.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}

// Stats returns the lookup counters since the cache was created
func (c *LayeredCache) Stats() Stats {
	return Stats{
		MemoryHits: c.memoryHits.Load(),
		DiskHits:   c.diskHits.Load(),
		Misses:     c.misses.Load(),
	}
}
