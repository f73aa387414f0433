package cache

import (
	"errors"
	"time"
)

// LayeredCache reads memory before disk and writes both
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache stacks memory in front of disk
func NewLayeredCache(memory, disk Cache) *LayeredCache {
	return &LayeredCache{
		memory: memory,
		disk:   disk,
	}
}

// Get checks memory first. Disk hits are promoted to memory.
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

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
