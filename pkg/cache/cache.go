// Package cache defines the cache store used by the search orchestrator and
// provides an in-memory implementation on patrickmn/go-cache.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store caches search results and places keyed by canonical strings.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (any, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Memory is an in-process Store with TTL expiry.
type Memory struct {
	store  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

var _ Store = (*Memory)(nil)

// New creates a memory cache. defaultTTL applies when Set is given a zero ttl;
// cleanupInterval is how often expired items are purged.
func New(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{
		store: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the cache.
func (c *Memory) Get(_ context.Context, key string) (any, bool, error) {
	v, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok, nil
}

// Set stores a value. A zero ttl uses the default expiration.
func (c *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(key, value, ttl)
	return nil
}

// Delete removes a value from the cache.
func (c *Memory) Delete(key string) {
	c.store.Delete(key)
}

// Clear removes all items from the cache.
func (c *Memory) Clear() {
	c.store.Flush()
}

// ItemCount returns the number of items in the cache, expired ones included
// until the next cleanup.
func (c *Memory) ItemCount() int {
	return c.store.ItemCount()
}

// Stats reports cache usage.
type Stats struct {
	ItemCount int   `json:"item_count" yaml:"item_count"`
	Hits      int64 `json:"hits" yaml:"hits"`
	Misses    int64 `json:"misses" yaml:"misses"`
}

// GetStats returns current cache statistics.
func (c *Memory) GetStats() Stats {
	return Stats{
		ItemCount: c.store.ItemCount(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
	}
}

// Nop is a Store that never holds anything.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, string) (any, bool, error) { return nil, false, nil }

// Set discards the value.
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
