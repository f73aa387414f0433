package cache

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/observability"
)

// AnnotationCache stores derived annotation lists by page URL. A nil
// AnnotationCache always misses.
type AnnotationCache struct {
	cache  Cache
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewAnnotationCache wraps c. It returns nil when c is nil.
func NewAnnotationCache(c Cache, ttl time.Duration, logger *zerolog.Logger) *AnnotationCache {
	if c == nil {
		return nil
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AnnotationCache{cache: c, ttl: ttl, logger: logger}
}

// Get returns the cached annotations for url
func (a *AnnotationCache) Get(url string) ([]model.Annotation, bool) {
	if a == nil {
		return nil, false
	}

	b, ok := a.cache.Get(CacheKey(url))
	if !ok {
		return nil, false
	}

	anns := []model.Annotation{}
	if err := json.Unmarshal(b, &anns); err != nil {
		a.logger.Warn().Err(err).Str("url", url).Msg("Dropping corrupt annotation cache entry")
		_ = a.cache.Delete(CacheKey(url))
		return nil, false
	}

	observability.AnnotationCacheTotal.WithLabelValues("memory_hit").Inc()
	return anns, true
}

// Set caches anns for url. Failures are logged, never returned.
func (a *AnnotationCache) Set(url string, anns []model.Annotation) {
	if a == nil {
		return
	}
	if anns == nil {
		anns = []model.Annotation{}
	}

	b, err := json.Marshal(anns)
	if err != nil {
		a.logger.Warn().Err(err).Str("url", url).Msg("Encode annotations for cache")
		return
	}
	if err := a.cache.Set(CacheKey(url), b, a.ttl); err != nil {
		a.logger.Warn().Err(err).Str("url", url).Msg("Write annotation cache")
	}
}
