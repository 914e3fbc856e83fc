package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter bounds call frequency to at most N calls per rolling period.
// There is no fairness guarantee across concurrent callers.
type Limiter struct {
	mu          sync.Mutex
	calls       int
	period      time.Duration
	count       int
	windowStart time.Time
}

// NewLimiter rejects zero or negative configuration up front; a zero
// period or call budget would make Acquire wait forever.
func NewLimiter(calls int, period time.Duration) (*Limiter, error) {
	if calls <= 0 {
		return nil, fmt.Errorf("rate limiter: calls must be positive, got %d", calls)
	}
	if period <= 0 {
		return nil, fmt.Errorf("rate limiter: period must be positive, got %v", period)
	}
	return &Limiter{calls: calls, period: period, windowStart: time.Now()}, nil
}

// Acquire blocks until a call slot is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.windowStart)
	if elapsed >= l.period {
		l.count = 0
		l.windowStart = time.Now()
		elapsed = 0
	}

	if l.count >= l.calls {
		wait := l.period - elapsed
		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
		l.count = 0
		l.windowStart = time.Now()
	}

	l.count++
	return nil
}
