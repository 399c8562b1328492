package memorycache

import (
	"sync/atomic"
	"time"

	"github.com/camarize/reconciler/pkg/cache"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config holds configuration for the memory cache.
type Config struct {
	// MaxEntries bounds the number of cached keys. When full, the least
	// recently used key is evicted. Zero means unbounded.
	MaxEntries int

	// TTL is the time-to-live for every entry. Zero disables expiry.
	TTL time.Duration
}

// Cache is an in-process LRU cache with expiry, backed by golang-lru.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]

	hits        atomic.Uint64
	misses      atomic.Uint64
	keysAdded   atomic.Uint64
	keysEvicted atomic.Uint64
}

var _ cache.Cache[bool] = (*Cache[bool])(nil)

// New creates a new memory cache with the given configuration.
func New[V any](config Config) *Cache[V] {
	c := &Cache[V]{}
	c.lru = expirable.NewLRU(config.MaxEntries, func(string, V) {
		c.keysEvicted.Add(1)
	}, config.TTL)
	return c
}

// Get retrieves a value from cache.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value in cache.
func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
	c.keysAdded.Add(1)
}

// Delete removes a value from cache.
func (c *Cache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Purge removes all entries from cache.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of items in cache.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Metrics returns a snapshot of the cache counters.
func (c *Cache[V]) Metrics() cache.Metrics {
	return cache.Metrics{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		KeysAdded:   c.keysAdded.Load(),
		KeysEvicted: c.keysEvicted.Load(),
	}
}

// ResetMetrics resets all counters to zero.
func (c *Cache[V]) ResetMetrics() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.keysAdded.Store(0)
	c.keysEvicted.Store(0)
}
