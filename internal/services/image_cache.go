package services

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"pickup-service/internal/metrics"
	"pickup-service/internal/storage"
)

// ImageCache fronts the durable store with an in-memory TTL cache so repeated
// views of the same confirmed photo do not hit object storage every time.
type ImageCache struct {
	cache   *gocache.Cache
	durable storage.DurableStore
	m       *metrics.Metrics
}

// NewImageCache creates an ImageCache over the durable store with the given
// entry TTL.
func NewImageCache(durable storage.DurableStore, m *metrics.Metrics, ttl time.Duration) *ImageCache {
	return &ImageCache{
		cache:   gocache.New(ttl, 2*ttl),
		durable: durable,
		m:       m,
	}
}

// Get returns the durable bytes for key, serving from cache when possible.
// Misses fall through to the durable store; storage.ErrNotFound passes
// through uncached.
func (c *ImageCache) Get(ctx context.Context, key string) ([]byte, error) {
	if cached, ok := c.cache.Get(key); ok {
		c.m.IncrementImageCacheHits()
		return cached.([]byte), nil
	}
	c.m.IncrementImageCacheMisses()

	data, err := c.durable.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, data)
	return data, nil
}
