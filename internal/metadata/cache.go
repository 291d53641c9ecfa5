package metadata

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"czstreams/internal/domain"
	"czstreams/internal/metrics"
)

const DefaultCacheTTL = 24 * time.Hour

// CacheBackend is a shared store behind the in-process cache.
type CacheBackend interface {
	Get(ctx context.Context, key string) (domain.Metadata, bool, error)
	Set(ctx context.Context, key string, meta domain.Metadata, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Cache keeps metadata in memory and, when a backend is configured, in a
// shared store so restarts and replicas reuse lookups.
type Cache struct {
	memory  *cache.Cache
	backend CacheBackend
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCache(ttl time.Duration, backend CacheBackend, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		memory:  cache.New(ttl, 10*time.Minute),
		backend: backend,
		ttl:     ttl,
		logger:  logger,
	}
}

func cacheKey(mediaType domain.MediaType, id string) string {
	return string(mediaType) + ":" + id
}

func (c *Cache) Get(ctx context.Context, key string) (domain.Metadata, bool) {
	if cached, ok := c.memory.Get(key); ok {
		if meta, ok := cached.(domain.Metadata); ok {
			metrics.MetaCacheHitsTotal.WithLabelValues("memory").Inc()
			return meta, true
		}
	}
	if c.backend != nil {
		meta, ok, err := c.backend.Get(ctx, key)
		if err != nil {
			c.logger.Warn("metadata cache backend read failed", slog.String("key", key), slog.String("error", err.Error()))
		} else if ok {
			metrics.MetaCacheHitsTotal.WithLabelValues("backend").Inc()
			c.memory.Set(key, meta, c.ttl)
			return meta, true
		}
	}
	metrics.MetaCacheMissesTotal.Inc()
	return domain.Metadata{}, false
}

func (c *Cache) Set(ctx context.Context, key string, meta domain.Metadata) {
	c.memory.Set(key, meta, c.ttl)
	if c.backend == nil {
		return
	}
	if err := c.backend.Set(ctx, key, meta, c.ttl); err != nil {
		c.logger.Warn("metadata cache backend write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Ping checks the shared backend. A memory-only cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Ping(ctx)
}

func (c *Cache) Len() int {
	return c.memory.ItemCount()
}
