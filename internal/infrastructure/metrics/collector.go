package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/camarize/reconciler/pkg/cache"
)

// Collector aggregates store operation counts in process, for logs and tests.
type Collector struct {
	// Store operation metrics, keyed by operation name ("exists", "scan", "delete")
	opCalls    sync.Map // map[string]*uint64
	opErrors   sync.Map // map[string]*uint64
	opDuration sync.Map // map[string]*durationValue

	// Existence cache (optional)
	cache cache.Cache[bool]
}

// durationValue holds duration with mutex for thread-safe updates.
type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// CacheMetrics holds existence cache metrics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int
	Evictions   uint64
}

// StoreMetrics holds store operation metrics.
type StoreMetrics struct {
	Calls                map[string]uint64
	Errors               map[string]uint64
	TotalDurationSeconds map[string]float64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the existence cache whose statistics are reported.
func (c *Collector) SetCache(cache cache.Cache[bool]) {
	c.cache = cache
}

// Observe records one store operation.
func (c *Collector) Observe(op string, d time.Duration, err error) {
	atomic.AddUint64(c.getOrCreateCounter(&c.opCalls, op), 1)
	if err != nil {
		atomic.AddUint64(c.getOrCreateCounter(&c.opErrors, op), 1)
	}

	val, _ := c.opDuration.LoadOrStore(op, &durationValue{})
	dv := val.(*durationValue)
	dv.mu.Lock()
	dv.totalSeconds += d.Seconds()
	dv.mu.Unlock()
}

// GetCacheMetrics returns current cache metrics.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	if c.cache == nil {
		return &CacheMetrics{}
	}

	m := c.cache.Metrics()
	return &CacheMetrics{
		Hits:        m.Hits,
		Misses:      m.Misses,
		HitRate:     m.HitRate(),
		KeysCurrent: c.cache.Len(),
		Evictions:   m.KeysEvicted,
	}
}

// GetStoreMetrics returns current store operation metrics.
func (c *Collector) GetStoreMetrics() *StoreMetrics {
	result := &StoreMetrics{
		Calls:                make(map[string]uint64),
		Errors:               make(map[string]uint64),
		TotalDurationSeconds: make(map[string]float64),
	}

	c.opCalls.Range(func(key, value interface{}) bool {
		result.Calls[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	c.opErrors.Range(func(key, value interface{}) bool {
		result.Errors[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	c.opDuration.Range(func(key, value interface{}) bool {
		dv := value.(*durationValue)
		dv.mu.Lock()
		result.TotalDurationSeconds[key.(string)] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return result
}

// getOrCreateCounter gets or creates a counter for the given key.
func (c *Collector) getOrCreateCounter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}
