package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(cfg Config) (*Cache[string], *fakeClock) {
	c := New[string](cfg)
	fc := &fakeClock{t: time.Now()}
	c.now = fc.Now
	return c, fc
}

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

func TestGetMissesAfterTTL(t *testing.T) {
	c, clock := newTestCache(Config{SweepInterval: time.Hour, Grace: time.Hour})
	defer c.Destroy()

	c.Set("k", "v", 10*time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(10*time.Second + time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "get must miss once ttl elapses")
}

func TestGetWithStaleWindow(t *testing.T) {
	c, clock := newTestCache(Config{SweepInterval: time.Hour, Grace: time.Hour})
	defer c.Destroy()

	c.Set("AAPL", "180", 10*time.Second)

	clock.Advance(12 * time.Second)
	res, ok := c.GetWithStale("AAPL", 120*time.Second)
	require.True(t, ok)
	assert.True(t, res.Stale)
	assert.Equal(t, "180", res.Value)

	clock.Advance(200 * time.Second)
	_, ok = c.GetWithStale("AAPL", 120*time.Second)
	assert.False(t, ok, "beyond the stale window it must miss")
}

func TestSweepNeverRemovesFreshEntry(t *testing.T) {
	c, clock := newTestCache(Config{SweepInterval: time.Hour, Grace: 5 * time.Second})
	defer c.Destroy()

	c.Set("fresh", "v", time.Minute)
	clock.Advance(time.Second)
	c.sweep()
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestSweepDropsExpiredPastGrace(t *testing.T) {
	c, clock := newTestCache(Config{SweepInterval: time.Hour, Grace: 5 * time.Second})
	defer c.Destroy()

	c.Set("k", "v", time.Second)
	clock.Advance(7 * time.Second)
	c.sweep()
	assert.Equal(t, 0, c.Size())
}

func TestSizeCountsRegardlessOfExpiry(t *testing.T) {
	c, clock := newTestCache(Config{SweepInterval: time.Hour, Grace: time.Hour})
	defer c.Destroy()

	c.Set("a", "1", time.Second)
	c.Set("b", "2", time.Second)
	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, c.Size())
}

func TestBoundedEvictsSmallestExpiresAtFirst(t *testing.T) {
	c, _ := newTestCache(Config{SweepInterval: time.Hour, Grace: time.Hour, MaxSize: 2})
	defer c.Destroy()

	c.Set("a", "1", 5*time.Second)
	c.Set("b", "2", 50*time.Second)
	c.Set("c", "3", 100*time.Second) // should evict "a", the soonest-expiring

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestConcurrentSetGet(t *testing.T) {
	c, _ := newTestCache(Config{SweepInterval: time.Hour, Grace: time.Hour})
	defer c.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("k", "v", time.Minute)
			c.Get("k")
		}(i)
	}
	wg.Wait()
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}
