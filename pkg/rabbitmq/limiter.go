package rabbitmq

import (
	"context"
	"sync"
	"time"
)

// Limiter caps how many permits are handed out per fixed window. A nil or
// unconfigured limiter allows everything.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	count  int
	reset  time.Time
}

func NewLimiter(max int, window time.Duration) *Limiter {
	if max <= 0 || window <= 0 {
		return nil
	}
	return &Limiter{max: max, window: window}
}

// Allow takes a permit if one is available in the current window.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.reset) {
		l.count = 0
		l.reset = now.Add(l.window)
	}
	if l.count >= l.max {
		return false
	}
	l.count++
	return true
}

// Wait blocks until a permit is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	for {
		if l.Allow() {
			return nil
		}

		l.mu.Lock()
		sleep := time.Until(l.reset)
		l.mu.Unlock()
		if sleep < time.Millisecond {
			sleep = time.Millisecond
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
