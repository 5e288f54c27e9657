package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	t.Run("nil limiter never blocks", func(t *testing.T) {
		var l *Limiter
		for range 100 {
			if err := l.Acquire(t.Context()); err != nil {
				t.Fatalf("Unexpected error %s", err)
			}
		}
	})

	t.Run("zero rate disables", func(t *testing.T) {
		if l := New(0, time.Minute); l != nil {
			t.Errorf("Expected nil limiter for zero rate")
		}
	})

	t.Run("bucket drains and refills", func(t *testing.T) {
		now := time.Now()
		l := New(3, time.Minute)
		l.now = func() time.Time { return now }
		l.lastTime = now

		for i := range 3 {
			if !l.tryAcquire() {
				t.Fatalf("Expected token %d to be available", i)
			}
		}
		if l.tryAcquire() {
			t.Errorf("Expected bucket to be empty")
		}

		// A third of the window refills one token
		now = now.Add(20 * time.Second)
		if !l.tryAcquire() {
			t.Errorf("Expected a token after refill")
		}
		if l.tryAcquire() {
			t.Errorf("Expected bucket to be empty again")
		}

		// Never more than rate tokens
		now = now.Add(time.Hour)
		got := 0
		for l.tryAcquire() {
			got++
		}
		if expected, actual := 3, got; expected != actual {
			t.Errorf("Expected %d tokens, got %d", expected, actual)
		}
	})

	t.Run("acquire honors context", func(t *testing.T) {
		l := New(1, time.Hour)
		if err := l.Acquire(t.Context()); err != nil {
			t.Fatalf("Unexpected error %s", err)
		}

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()
		if err := l.Acquire(ctx); err != context.DeadlineExceeded {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
	})
}
