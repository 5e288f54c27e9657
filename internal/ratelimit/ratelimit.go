// Package ratelimit throttles requests to hosted model APIs.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket rate limiter. A nil *Limiter never blocks.
type Limiter struct {
	mu       sync.Mutex // protect access to lastTime and tokens
	lastTime time.Time
	tokens   int

	window time.Duration
	rate   int

	now func() time.Time
}

// New creates a limiter allowing rate units of work over window, e.g.
// New(10, time.Minute) allows 10 requests a minute. A rate of 0 or less
// returns nil, which disables limiting.
func New(rate int, window time.Duration) *Limiter {
	if rate <= 0 || window <= 0 {
		return nil
	}

	return &Limiter{
		window:   window,
		rate:     rate,
		lastTime: time.Now(),
		tokens:   rate,
		now:      time.Now,
	}
}

// Acquire returns nil once work can proceed. If ctx is Done first Acquire
// returns ctx.Err().
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}

	for {
		if ok := l.tryAcquire(); ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.window / time.Duration(l.rate)):
			// The bucket is empty. Tokens refill evenly across the window so
			// 1/Nth of it is enough for at least one to accumulate.
		}
	}
}

func (l *Limiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastTime)

	// Refill proportionally to the time since the last refill. lastTime stays
	// put until at least one whole token has accumulated.
	refill := int(elapsed.Nanoseconds() * int64(l.rate) / l.window.Nanoseconds())
	if refill > 0 {
		l.tokens = min(l.tokens+refill, l.rate)
		l.lastTime = now
	}

	if l.tokens <= 0 {
		return false
	}

	l.tokens--
	return true
}
