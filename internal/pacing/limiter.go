package pacing

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum delay between outbound requests. It wraps a
// token bucket with burst 1, so consecutive Wait calls are spaced at least
// the configured delay apart on the monotonic clock regardless of how long
// the requests themselves take. An optional random jitter is added on top to
// avoid synchronized retry storms.
type Limiter struct {
	limiter *rate.Limiter
	jitter  time.Duration
}

func NewLimiter(delay, jitter time.Duration) *Limiter {
	if delay <= 0 {
		// A zero interval limiter that never blocks.
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1), jitter: jitter}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		jitter:  jitter,
	}
}

// Wait blocks until the spacing since the previous permitted request has
// elapsed, or returns the context error on cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	if l.jitter <= 0 {
		return nil
	}

	pause := time.Duration(rand.Int63n(int64(l.jitter)))
	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
