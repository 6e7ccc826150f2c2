package ratelimit

import (
	"sync"
	"time"
)

// Limiter throttles outbound page and image requests so scraping stays
// polite toward the origin hosts.
type Limiter interface {
	// Allow reports whether a request may proceed right now.
	Allow() bool
	// Wait blocks until a request is allowed.
	Wait()
	// Reset restores the limiter to its initial state.
	Reset()
}

// TokenBucket refills tokens gradually over the refill period.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	ratePerSec float64
	last       time.Time
}

// NewTokenBucket allows capacity requests per refill period.
func NewTokenBucket(capacity int, period time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if period <= 0 {
		period = time.Minute
	}
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		ratePerSec: float64(capacity) / period.Seconds(),
		last:       time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) Wait() {
	for {
		tb.mu.Lock()
		tb.refill(time.Now())
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return
		}
		// Time until the next whole token accrues.
		deficit := 1 - tb.tokens
		sleep := time.Duration(deficit / tb.ratePerSec * float64(time.Second))
		tb.mu.Unlock()

		if sleep < 10*time.Millisecond {
			sleep = 10 * time.Millisecond
		}
		time.Sleep(sleep)
	}
}

func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = tb.capacity
	tb.last = time.Now()
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.last).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.ratePerSec
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = now
}

// Unlimited is a no-op limiter for tests and local fixtures.
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }
func (Unlimited) Wait()       {}
func (Unlimited) Reset()      {}
