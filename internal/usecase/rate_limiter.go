package usecase

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces upstream calls at least minInterval apart.
// Its only state is the next time a call is allowed.
type RateLimiter struct {
	minInterval time.Duration
	next        time.Time
	mu          sync.Mutex

	timeNow func() time.Time                              // For testing
	sleep   func(ctx context.Context, d time.Duration) error // For testing
}

func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		minInterval: minInterval,
		timeNow:     time.Now,
		sleep:       sleepContext,
	}
}

// Acquire returns once the caller owns the next upstream slot.
// Concurrent callers are queued in arrival order. A slot reserved by a
// caller whose context ends while waiting is not handed back.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	r.mu.Lock()
	now := r.timeNow()
	slot := now
	if r.next.After(now) {
		slot = r.next
	}
	r.next = slot.Add(r.minInterval)
	r.mu.Unlock()

	if wait := slot.Sub(now); wait > 0 {
		return r.sleep(ctx, wait)
	}
	return nil
}

// MinInterval reports the configured spacing.
func (r *RateLimiter) MinInterval() time.Duration {
	return r.minInterval
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
