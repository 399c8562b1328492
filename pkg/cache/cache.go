package cache

// Cache is a bounded key-value cache with a fixed time-to-live.
// Implementations must be safe for concurrent use.
type Cache[V any] interface {
	// Get retrieves a value from cache.
	// Returns the value and true if found and not expired.
	Get(key string) (V, bool)

	// Set stores a value, replacing any existing entry for key.
	Set(key string, value V)

	// Delete removes a value from cache. Deleting a missing key is a no-op.
	Delete(key string)

	// Purge removes all entries from cache.
	Purge()

	// Len returns the number of entries currently held, expired ones included
	// until they are swept.
	Len() int

	// Metrics returns cache statistics.
	Metrics() Metrics
}

// Metrics holds cache performance statistics.
type Metrics struct {
	// Hits is the number of cache hits
	Hits uint64

	// Misses is the number of cache misses
	Misses uint64

	// KeysAdded is the number of keys added to cache
	KeysAdded uint64

	// KeysEvicted is the number of keys removed by capacity, expiry or Delete
	KeysEvicted uint64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
