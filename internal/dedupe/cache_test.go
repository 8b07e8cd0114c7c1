// ABOUTME: Tests for the TTL read cache used in front of upstream GET requests.
// ABOUTME: Validates TTL expiration, size limits, eviction order, cleanup, purge and concurrency.

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(ttl time.Duration, maxSize int) (*Cache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string](ttl, maxSize)
	c.now = clock.Now
	return c, clock
}

func TestCache_Get_Missing(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 100)
	defer cache.Close()

	_, ok := cache.Get("never-stored")
	assert.False(t, ok)
}

func TestCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 100)
	defer cache.Close()

	cache.Put("/v2/categories", `{"data":[]}`)

	v, ok := cache.Get("/v2/categories")
	assert.True(t, ok)
	assert.Equal(t, `{"data":[]}`, v)
}

func TestCache_Expired(t *testing.T) {
	cache, clock := newTestCache(10*time.Second, 100)
	defer cache.Close()

	cache.Put("expiring", "v")
	_, ok := cache.Get("expiring")
	assert.True(t, ok)

	clock.Advance(10 * time.Second)

	_, ok = cache.Get("expiring")
	assert.False(t, ok, "entry should expire once the TTL has elapsed")
}

func TestCache_Put_RefreshesTimestampAndValue(t *testing.T) {
	cache, clock := newTestCache(50*time.Second, 100)
	defer cache.Close()

	cache.Put("refresh", "old")
	clock.Advance(30 * time.Second)
	cache.Put("refresh", "new")
	clock.Advance(30 * time.Second)

	// Still present because the second Put restarted the window
	v, ok := cache.Get("refresh")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestCache_EvictionOrder(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 3)
	defer cache.Close()

	cache.Put("first", "1")
	cache.Put("second", "2")
	cache.Put("third", "3")

	// Add fourth - should evict "first" (oldest)
	cache.Put("fourth", "4")
	_, ok := cache.Get("first")
	assert.False(t, ok, "first should be evicted")

	// Refresh "second" so "third" becomes the oldest
	cache.Put("second", "2b")
	cache.Put("fifth", "5")

	_, ok = cache.Get("third")
	assert.False(t, ok, "third should be evicted")
	for _, k := range []string{"second", "fourth", "fifth"} {
		_, ok := cache.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, 3, cache.Len())
}

func TestCache_Cleanup(t *testing.T) {
	cache, clock := newTestCache(10*time.Second, 100)
	defer cache.Close()

	cache.Put("cleanup-1", "a")
	cache.Put("cleanup-2", "b")
	clock.Advance(5 * time.Second)
	cache.Put("fresh", "c")
	clock.Advance(6 * time.Second)

	cache.runCleanup()

	assert.Equal(t, 1, cache.Len(), "cleanup should remove only expired entries")
	_, ok := cache.Get("fresh")
	assert.True(t, ok)
}

func TestCache_Purge(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 100)
	defer cache.Close()

	cache.Put("a", "1")
	cache.Put("b", "2")
	cache.Purge()

	assert.Equal(t, 0, cache.Len())
	cache.Put("c", "3")
	_, ok := cache.Get("c")
	assert.True(t, ok, "cache must stay usable after purge")
}

func TestCache_Concurrent(t *testing.T) {
	cache := New[int](5*time.Minute, 1000)
	defer cache.Close()

	const numGoroutines = 100
	const opsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := fmt.Sprintf("key-%d-%d", id%26, j%10)
				cache.Put(key, j)
				cache.Get(key)
			}
		}(i)
	}

	wg.Wait()

	cache.Put("final-key", 1)
	v, ok := cache.Get("final-key")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCache_Close(t *testing.T) {
	cache := New[string](5*time.Minute, 100)

	cache.Put("before-close", "x")
	_, ok := cache.Get("before-close")
	assert.True(t, ok)

	// Multiple closes should not panic
	cache.Close()
	cache.Close()
}
