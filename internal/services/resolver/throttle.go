package resolver

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrThrottled means a slot could not be acquired in time.
var ErrThrottled = errors.New("resolver concurrency limit reached")

// Throttle bounds in-flight completions and their request rate.
type Throttle struct {
	slots   chan struct{}
	limiter *rate.Limiter
	wait    time.Duration
}

// NewThrottle builds a throttle. rps <= 0 disables the rate limit;
// acquireTimeout <= 0 waits as long as ctx allows.
func NewThrottle(maxConcurrent int, rps float64, burst int, acquireTimeout time.Duration) *Throttle {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	t := &Throttle{slots: make(chan struct{}, maxConcurrent), wait: acquireTimeout}
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return t
}

// Acquire blocks for a slot and a rate token. The returned func releases the slot.
func (t *Throttle) Acquire(ctx context.Context) (func(), error) {
	if t.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.wait)
		defer cancel()
	}
	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ErrThrottled
	}
	release := func() { <-t.slots }
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			release()
			return nil, ErrThrottled
		}
	}
	return release, nil
}

// InFlight reports occupied slots.
func (t *Throttle) InFlight() int { return len(t.slots) }
