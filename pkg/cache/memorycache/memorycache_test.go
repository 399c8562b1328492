package memorycache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_SetAndGet(t *testing.T) {
	cache := New[string](Config{MaxEntries: 100, TTL: time.Minute})

	cache.Set("key1", "value1")

	value, found := cache.Get("key1")
	if !found {
		t.Error("expected to find key1")
	}
	if value != "value1" {
		t.Errorf("expected value1, got %v", value)
	}

	// Get non-existent key
	_, found = cache.Get("nonexistent")
	if found {
		t.Error("expected not to find nonexistent key")
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	cache := New[bool](Config{MaxEntries: 100, TTL: 50 * time.Millisecond})

	cache.Set("key1", true)

	// Should find it immediately
	if _, found := cache.Get("key1"); !found {
		t.Error("expected to find key1 before expiration")
	}

	time.Sleep(150 * time.Millisecond)

	if _, found := cache.Get("key1"); found {
		t.Error("expected not to find key1 after expiration")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	cache := New[int](Config{MaxEntries: 3, TTL: time.Minute})

	for i := 0; i < 10; i++ {
		cache.Set(string(rune('a'+i)), i)
	}

	if cache.Len() != 3 {
		t.Errorf("expected 3 items after eviction, got %d", cache.Len())
	}

	// Most recent items should still be present
	if _, found := cache.Get("j"); !found {
		t.Error("expected to find most recent item 'j'")
	}
	if _, found := cache.Get("a"); found {
		t.Error("expected oldest item 'a' to be evicted")
	}
	if got := cache.Metrics().KeysEvicted; got != 7 {
		t.Errorf("expected 7 evictions, got %d", got)
	}
}

func TestCache_Delete(t *testing.T) {
	cache := New[bool](Config{MaxEntries: 100, TTL: time.Minute})

	cache.Set("key1", true)
	cache.Delete("key1")

	if _, found := cache.Get("key1"); found {
		t.Error("expected key1 to be deleted")
	}

	// Deleting a missing key is a no-op
	cache.Delete("nonexistent")
}

func TestCache_Purge(t *testing.T) {
	cache := New[bool](Config{MaxEntries: 100, TTL: time.Minute})

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("key%d", i), true)
	}
	cache.Purge()

	if cache.Len() != 0 {
		t.Errorf("expected empty cache after purge, got %d", cache.Len())
	}
}

func TestCache_Metrics(t *testing.T) {
	cache := New[bool](Config{MaxEntries: 100, TTL: time.Minute})

	cache.Set("key1", true)
	cache.Get("key1")
	cache.Get("key1")
	cache.Get("missing")

	m := cache.Metrics()
	if m.Hits != 2 {
		t.Errorf("expected 2 hits, got %d", m.Hits)
	}
	if m.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", m.Misses)
	}
	if m.KeysAdded != 1 {
		t.Errorf("expected 1 key added, got %d", m.KeysAdded)
	}
	if rate := m.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("expected hit rate ~0.667, got %f", rate)
	}

	cache.ResetMetrics()
	if m := cache.Metrics(); m.Hits != 0 || m.Misses != 0 {
		t.Errorf("expected zeroed metrics after reset, got %+v", m)
	}
}

func TestCache_UpdateExisting(t *testing.T) {
	cache := New[string](Config{MaxEntries: 100, TTL: time.Minute})

	cache.Set("key1", "value1")
	cache.Set("key1", "value2")

	value, _ := cache.Get("key1")
	if value != "value2" {
		t.Errorf("expected value2, got %v", value)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 item, got %d", cache.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := New[int](Config{MaxEntries: 1000, TTL: time.Minute})

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key%d", i%20)
				cache.Set(key, g)
				cache.Get(key)
				if i%10 == 0 {
					cache.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	m := cache.Metrics()
	if m.Hits+m.Misses != 1000 {
		t.Errorf("expected 1000 lookups, got %d", m.Hits+m.Misses)
	}
}
