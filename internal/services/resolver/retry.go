package resolver

import (
	"context"
	"math/rand"
	"time"

	"SignalBT/internal/domain/models"
)

// Policy is the retry schedule, kept apart from parsing.
type Policy struct {
	Attempts   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	Retryable  func(models.FailureReason) bool
}

// DefaultRetryable retries malformed output, timeouts and upstream errors.
// A down service, a rate limit or a definite "no signal" answer fail fast.
func DefaultRetryable(r models.FailureReason) bool {
	switch r {
	case models.ReasonMalformedOutput, models.ReasonTimeout, models.ReasonUpstream:
		return true
	}
	return false
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		BackoffMin: time.Second,
		BackoffMax: 2 * time.Second,
		Retryable:  DefaultRetryable,
	}
}

func (p Policy) backoff() time.Duration {
	if p.BackoffMax <= p.BackoffMin {
		return p.BackoffMin
	}
	jitter := time.Duration(rand.Int63n(int64(p.BackoffMax - p.BackoffMin)))
	return p.BackoffMin + jitter
}

// Do runs fn until it succeeds, returns a non-retryable failure or the
// attempt budget is spent. The returned failure carries the attempt count.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, *models.Failure)) (T, *models.Failure) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	var (
		zero T
		last *models.Failure
	)
	for i := 1; i <= attempts; i++ {
		v, f := fn(ctx, i)
		if f == nil {
			return v, nil
		}
		f.Attempts = i
		last = f
		if !retryable(f.Reason) || i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			last = &models.Failure{Reason: models.ReasonTimeout, Attempts: i, Err: ctx.Err()}
			return zero, last
		case <-time.After(p.backoff()):
		}
	}
	return zero, last
}
