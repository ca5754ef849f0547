// Package ratelimit implements a fixed-window request counter per key.
//
// The window is fixed, not sliding: the counter resets when a call arrives
// more than one window after the bucket's windowStart. A burst straddling a
// window boundary can therefore admit up to 2x the limit in a short span.
// That is an accepted property of the algorithm, asserted in tests, not a
// bug to silently fix by upgrading to a sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is the per-key window state. Its read-modify-write (reset-if-expired
// then increment) happens under the bucket's own mutex so unrelated keys
// never serialize on each other.
type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// Limiter bounds accepted operations per key to a limit per fixed window.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// New constructs a Limiter with the given window length; window defaults to
// one minute when non-positive.
func New(window time.Duration) *Limiter {
	return NewWithClock(window, time.Now)
}

// NewWithClock constructs a Limiter with an injectable clock (for tests).
func NewWithClock(window time.Duration, now func() time.Time) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		buckets:   make(map[string]*bucket),
		window:    window,
		now:       now,
		lastSweep: now(),
	}
}

// TryConsume records one operation for key and reports whether it is within
// limit for the current window. It never fails: an unseen key starts a fresh
// bucket.
func (l *Limiter) TryConsume(key string, limit int) bool {
	now := l.now()
	b := l.bucketFor(key, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.windowStart) > l.window {
		b.windowStart = now
		b.count = 0
	}
	b.count++
	return b.count <= limit
}

// Remaining reports how many operations key may still perform in the current
// window, for observability headers. It does not consume.
func (l *Limiter) Remaining(key string, limit int) int {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	l.mu.Unlock()
	if !ok {
		return limit
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.windowStart) > l.window {
		return limit
	}
	if remaining := limit - b.count; remaining > 0 {
		return remaining
	}
	return 0
}

// bucketFor returns the bucket for key, creating it lazily. Buckets idle for
// at least two full windows are evicted here, amortized over calls, so memory
// stays bounded by active-key cardinality.
func (l *Limiter) bucketFor(key string, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.lastSweep = now
		for k, b := range l.buckets {
			if k == key {
				continue
			}
			b.mu.Lock()
			idle := now.Sub(b.windowStart) >= 2*l.window
			b.mu.Unlock()
			if idle {
				delete(l.buckets, k)
			}
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}
	return b
}

// Len reports the number of live buckets (for tests and metrics).
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
