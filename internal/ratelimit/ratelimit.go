// Package ratelimit implements a per-key token bucket with lazy,
// continuous refill. State lives only in memory: a restart starts every
// bucket full again.
package ratelimit

import (
	"container/list"
	"fmt"
	"math"
	"sync"
	"time"
)

// bucket holds the live state for one key. Refill is computed from the
// elapsed wall time on each access rather than by a ticker.
type bucket struct {
	tokens float64
	last   time.Time
	elem   *list.Element // position in the recency list
}

// Limiter is a keyed token bucket. A bucket is created full on first
// touch. The key set is bounded by maxKeys (least-recently-used keys are
// evicted first); 0 disables eviction.
type Limiter struct {
	burst   float64
	ratePMS float64 // tokens per millisecond
	maxKeys int

	mu     sync.Mutex
	m      map[string]*bucket
	recent *list.List // front = most recently touched, values are keys

	now func() time.Time // swapped out in tests
}

// New validates the construction parameters up front: the process must
// not start with a burst or window that can never grant a token.
func New(burst int, window time.Duration, maxKeys int) (*Limiter, error) {
	if burst <= 0 {
		return nil, fmt.Errorf("ratelimit: burst must be positive, got %d", burst)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive, got %s", window)
	}
	return &Limiter{
		burst:   float64(burst),
		ratePMS: float64(burst) / float64(window.Milliseconds()),
		maxKeys: maxKeys,
		m:       make(map[string]*bucket),
		recent:  list.New(),
		now:     time.Now,
	}, nil
}

// touch returns the refilled bucket for key, creating it if needed.
// Callers hold l.mu.
func (l *Limiter) touch(key string) *bucket {
	now := l.now()
	b := l.m[key]
	if b == nil {
		b = &bucket{tokens: l.burst, last: now}
		b.elem = l.recent.PushFront(key)
		l.m[key] = b
		l.evict()
	} else {
		l.recent.MoveToFront(b.elem)
	}

	elapsed := float64(now.Sub(b.last).Milliseconds())
	b.tokens = math.Min(l.burst, b.tokens+elapsed*l.ratePMS)
	b.last = now
	return b
}

func (l *Limiter) evict() {
	if l.maxKeys <= 0 {
		return
	}
	for len(l.m) > l.maxKeys {
		oldest := l.recent.Back()
		if oldest == nil {
			return
		}
		l.recent.Remove(oldest)
		delete(l.m, oldest.Value.(string))
	}
}

// Allow reports whether a token is available without consuming one.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.touch(key).tokens >= 1
}

// Consume takes one token if available and reports whether it did.
func (l *Limiter) Consume(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.touch(key)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Tokens returns the whole tokens currently available for key.
func (l *Limiter) Tokens(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.touch(key).tokens)
}

// NextToken returns how long until key has a full token again; zero when
// one is already available.
func (l *Limiter) NextToken(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.touch(key)
	if b.tokens >= 1 {
		return 0
	}
	ms := math.Ceil((1 - b.tokens) / l.ratePMS)
	return time.Duration(ms) * time.Millisecond
}

// Reset discards every bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m = make(map[string]*bucket)
	l.recent.Init()
}
