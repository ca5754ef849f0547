package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/neexbeast/weathersync/internal/ratelimit"
)

// fakeClock lets tests move time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
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

func TestTryConsume_LimitEnforcedWithinWindow(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(time.Minute, clock.Now)

	accepted := 0
	for i := 0; i < 5; i++ {
		if l.TryConsume("caller-a", 3) {
			accepted++
		}
	}

	assert.Equal(t, 3, accepted, "exactly 3 of 5 calls should be accepted")
}

func TestTryConsume_WindowBoundaryResetsCount(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, l.TryConsume("caller-a", 3))
	}
	assert.False(t, l.TryConsume("caller-a", 3))

	clock.Advance(61 * time.Second)
	assert.True(t, l.TryConsume("caller-a", 3), "count should reset after the window")
}

func TestTryConsume_BoundaryBurstAllowsTwiceLimit(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(time.Minute, clock.Now)

	// Fill the tail of one window, then the head of the next: 2x limit
	// total inside ~2 seconds. Documented fixed-window behavior.
	accepted := 0
	for i := 0; i < 3; i++ {
		if l.TryConsume("caller-a", 3) {
			accepted++
		}
	}
	clock.Advance(61 * time.Second)
	for i := 0; i < 3; i++ {
		if l.TryConsume("caller-a", 3) {
			accepted++
		}
	}

	assert.Equal(t, 6, accepted)
}

func TestTryConsume_KeysAreIsolated(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, l.TryConsume("caller-a", 3))
	}
	assert.False(t, l.TryConsume("caller-a", 3))
	assert.True(t, l.TryConsume("caller-b", 3), "one caller exhausting its budget must not affect another")
}

func TestRemaining(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(time.Minute, clock.Now)

	assert.Equal(t, 3, l.Remaining("caller-a", 3), "unseen key is a fresh bucket")

	l.TryConsume("caller-a", 3)
	assert.Equal(t, 2, l.Remaining("caller-a", 3))

	l.TryConsume("caller-a", 3)
	l.TryConsume("caller-a", 3)
	l.TryConsume("caller-a", 3)
	assert.Equal(t, 0, l.Remaining("caller-a", 3), "remaining never goes negative")

	clock.Advance(61 * time.Second)
	assert.Equal(t, 3, l.Remaining("caller-a", 3))
}

func TestTryConsume_ConcurrentSameKey(t *testing.T) {
	l := ratelimit.New(time.Minute)

	const callers = 50
	const limit = 20

	var wg sync.WaitGroup
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.TryConsume("shared", limit)
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for ok := range results {
		if ok {
			accepted++
		}
	}
	assert.Equal(t, limit, accepted, "concurrent callers must not double-count or double-reset")
}

func TestIdleBucketsEvicted(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(time.Minute, clock.Now)

	l.TryConsume("short-lived", 3)
	l.TryConsume("long-lived", 3)
	assert.Equal(t, 2, l.Len())

	// Two full windows later only the key still in use survives the sweep.
	clock.Advance(2 * time.Minute)
	l.TryConsume("long-lived", 3)
	assert.Equal(t, 1, l.Len())
}
