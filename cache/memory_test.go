package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryCache_MissThenHit(t *testing.T) {
	c := NewMemoryCache("test", time.Minute, 8)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", "v")

	value, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestMemoryCache_TTLExpiryPurgesOnRead(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache("test", 600*time.Second, 8, WithClock(clock.Now))

	c.Set("k", "v")

	clock.Advance(600 * time.Second)
	value, ok := c.Get("k")
	require.True(t, ok, "an entry exactly ttl old is still visible")
	assert.Equal(t, "v", value)

	clock.Advance(time.Nanosecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry must be removed by the read")
}

func TestMemoryCache_ExpiredEntryStaysUntilTouched(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache("test", time.Minute, 8, WithClock(clock.Now))

	c.Set("a", 1)
	c.Set("b", 2)
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_CapacityKeepsNewest(t *testing.T) {
	clock := newFakeClock()
	const maxItems = 256
	c := NewMemoryCache("test", time.Hour, maxItems, WithClock(clock.Now))

	total := maxItems + 50
	for i := 0; i < total; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
		clock.Advance(time.Millisecond)
		assert.LessOrEqual(t, c.Len(), maxItems)
	}

	assert.Equal(t, maxItems, c.Len())
	assert.Equal(t, uint64(50), c.Evictions())

	for i := 0; i < 50; i++ {
		_, ok := c.Get(fmt.Sprintf("key-%d", i))
		assert.False(t, ok, "key-%d should have been evicted", i)
	}
	for i := 50; i < total; i++ {
		value, ok := c.Get(fmt.Sprintf("key-%d", i))
		require.True(t, ok, "key-%d should survive", i)
		assert.Equal(t, i, value)
	}
}

func TestMemoryCache_CapacityWithFrozenClock(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache("test", time.Hour, 3, WithClock(clock.Now))

	for _, key := range []string{"a", "b", "c", "d"} {
		c.Set(key, key)
	}

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "insertion order breaks timestamp ties")
	_, ok = c.Get("d")
	assert.True(t, ok)
}

func TestMemoryCache_RefreshProtectsFromEviction(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache("test", time.Hour, 2, WithClock(clock.Now))

	c.Set("a", 1)
	clock.Advance(time.Second)
	c.Set("b", 2)
	clock.Advance(time.Second)

	_, _ = c.Get("a")
	clock.Advance(time.Second)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "reads do not refresh an entry")

	c.Set("b", 20)
	clock.Advance(time.Second)
	c.Set("d", 4)

	value, ok := c.Get("b")
	require.True(t, ok, "a refreshed entry outlives older ones")
	assert.Equal(t, 20, value)
	_, ok = c.Get("c")
	assert.False(t, ok)
}

func TestMemoryCache_RefreshOverwrites(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache("test", time.Minute, 8, WithClock(clock.Now))

	c.Set("k", "v1")
	clock.Advance(50 * time.Second)
	c.Set("k", "v2")

	value, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", value)
	assert.Equal(t, 1, c.Len())

	clock.Advance(50 * time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok, "refresh resets the entry age")
}

func TestMemoryCache_Sweep(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache("test", time.Minute, 8, WithClock(clock.Now))

	c.Set("old-1", 1)
	c.Set("old-2", 2)
	clock.Advance(2 * time.Minute)
	c.Set("fresh", 3)

	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.Sweep())
}

func TestMemoryCache_Defaults(t *testing.T) {
	c := NewMemoryCache("test", 0, 0)

	assert.Equal(t, DefaultTTL, c.ttl)
	assert.Equal(t, DefaultMaxItems, c.maxItems)
}

func TestMemoryCache_Lifecycle(t *testing.T) {
	c := NewMemoryCache("test", time.Minute, 8)

	require.NoError(t, c.Start())
	assert.True(t, c.IsRunning())
	assert.Error(t, c.Start())

	c.Set("k", "v")
	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
	assert.Equal(t, 0, c.Len())
	assert.Error(t, c.Stop())
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	const (
		maxItems   = 32
		workers    = 16
		iterations = 2000
		keySpace   = 64
	)

	c := NewMemoryCache("test", time.Minute, maxItems)

	var wg sync.WaitGroup
	errs := make(chan string, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				key := fmt.Sprintf("key-%d", (worker*7+i)%keySpace)
				if i%3 == 0 {
					c.Set(key, fmt.Sprintf("%s|%d|%d", key, worker, i))
					continue
				}

				value, ok := c.Get(key)
				if !ok {
					continue
				}
				s, isString := value.(string)
				if !isString || !strings.HasPrefix(s, key+"|") {
					errs <- fmt.Sprintf("key %s returned foreign value %v", key, value)
					return
				}
				if n := c.Len(); n > maxItems {
					errs <- fmt.Sprintf("store grew to %d", n)
					return
				}
			}
		}(w)
	}

	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
	assert.LessOrEqual(t, c.Len(), maxItems)
}
