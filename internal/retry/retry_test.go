package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instantPolicy() Policy {
	p := DefaultPolicy()
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	p := instantPolicy()

	res := p.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	assert.True(t, res.Success)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Zero(t, res.TotalDelay)
}

func TestExecute_RetriesTransientError(t *testing.T) {
	p := instantPolicy()

	calls := 0
	res := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, calls)
	assert.Positive(t, res.TotalDelay)
}

func TestExecute_StopsOnNonRetryable(t *testing.T) {
	p := instantPolicy()

	calls := 0
	wantErr := errors.New("record validation failed")
	res := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, res.Err, wantErr)
}

func TestExecute_ExhaustsAttempts(t *testing.T) {
	p := instantPolicy()
	p.MaxAttempts = 4

	calls := 0
	res := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("request timeout")
	})

	assert.False(t, res.Success)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 4, calls)
}

func TestExecute_RetryableHTTPStatus(t *testing.T) {
	p := instantPolicy()

	for _, status := range []int{408, 429, 500, 502, 503, 504} {
		calls := 0
		res := p.Execute(context.Background(), func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return &HTTPStatusError{Status: status, Message: "try later"}
			}
			return nil
		})
		assert.True(t, res.Success, "status %d should be retried", status)
		assert.Equal(t, 2, calls)
	}

	// Client errors are final.
	calls := 0
	res := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return &HTTPStatusError{Status: 400, Message: "bad payload"}
	})
	assert.False(t, res.Success)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.Attempts)
}

func TestExecute_RetryableWrapper(t *testing.T) {
	p := instantPolicy()

	calls := 0
	res := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &Retryable{Err: errors.New("transient fluke")}
		}
		return nil
	})

	assert.True(t, res.Success)
	assert.Equal(t, 2, calls)
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	p := DefaultPolicy()
	p.BaseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	p.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	res := p.Execute(ctx, func(ctx context.Context) error {
		return errors.New("timeout")
	})

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestDelayFor_BackoffIsMonotonicUpToCap(t *testing.T) {
	p := DefaultPolicy()
	p.Jitter = 0
	p.BaseDelay = time.Second
	p.MaxDelay = 30 * time.Second
	p.BackoffMultiplier = 2

	var prev time.Duration
	for attempt := 1; attempt <= 8; attempt++ {
		d := p.DelayFor(attempt)
		require.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		require.LessOrEqual(t, d, p.MaxDelay)
		prev = d
	}

	assert.Equal(t, time.Second, p.DelayFor(1))
	assert.Equal(t, 2*time.Second, p.DelayFor(2))
	assert.Equal(t, 4*time.Second, p.DelayFor(3))
	// Cap reached at attempt 6 and beyond.
	assert.Equal(t, 30*time.Second, p.DelayFor(6))
	assert.Equal(t, 30*time.Second, p.DelayFor(10))
}

func TestDelayFor_JitterStaysWithinBounds(t *testing.T) {
	p := DefaultPolicy()
	p.BaseDelay = time.Second
	p.Jitter = 0.1

	for i := 0; i < 200; i++ {
		d := p.DelayFor(1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}

func TestWithRetry_ReturnsFinalError(t *testing.T) {
	p := instantPolicy()
	p.MaxAttempts = 2

	err := p.WithRetry(context.Background(), func(ctx context.Context) error {
		return errors.New("timeout talking to server")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	err = p.WithRetry(context.Background(), func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}
