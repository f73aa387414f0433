// Package cache provides byte caches used to short-circuit repeat annotation
// lookups in front of the investigation store.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/bsdetector/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "bsdetector:v1:"

// CacheKey generates a cache key from a URL
func CacheKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory only, or memory in front of
// disk when DiskDir is set. It returns nil when caching is disabled.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}

	mem := NewMemoryCache(cfg.TTL, cfg.CleanupInterval)
	if cfg.DiskDir == "" {
		return mem
	}
	return NewLayeredCache(mem, NewDiskCache(cfg.DiskDir, cfg.TTL))
}
