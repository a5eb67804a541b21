package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	v, fail := Do(context.Background(), fastPolicy(3), func(_ context.Context, attempt int) (int, *models.Failure) {
		calls++
		if attempt < 3 {
			return 0, models.NewFailure(models.ReasonMalformedOutput, nil)
		}
		return 7, nil
	})
	require.Nil(t, fail)
	assert.Equal(t, 7, v)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, fail := Do(context.Background(), fastPolicy(3), func(_ context.Context, _ int) (string, *models.Failure) {
		calls++
		return "", models.NewFailure(models.ReasonTimeout, errors.New("slow"))
	})
	require.NotNil(t, fail)
	assert.Equal(t, models.ReasonTimeout, fail.Reason)
	assert.Equal(t, 3, fail.Attempts)
	assert.Equal(t, 3, calls)
}

func TestDoFailsFastOnConnection(t *testing.T) {
	for _, reason := range []models.FailureReason{models.ReasonConnection, models.ReasonRateLimited, models.ReasonNoSignal} {
		calls := 0
		_, fail := Do(context.Background(), fastPolicy(3), func(_ context.Context, _ int) (string, *models.Failure) {
			calls++
			return "", models.NewFailure(reason, nil)
		})
		require.NotNil(t, fail)
		assert.Equal(t, reason, fail.Reason)
		assert.Equal(t, 1, fail.Attempts)
		assert.Equal(t, 1, calls, string(reason))
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, BackoffMin: time.Hour}
	_, fail := Do(ctx, p, func(_ context.Context, _ int) (string, *models.Failure) {
		cancel()
		return "", models.NewFailure(models.ReasonUpstream, nil)
	})
	require.NotNil(t, fail)
	assert.Equal(t, models.ReasonTimeout, fail.Reason)
	assert.Equal(t, 1, fail.Attempts)
}
