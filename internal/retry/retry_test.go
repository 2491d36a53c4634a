package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	perrors "github.com/p-blackswan/project-health/internal/errors"
)

func fast(attempts int) Config {
	return Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_Success(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func(context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(3), func(context.Context) error {
		calls++
		return perrors.ErrInvalidInput
	})
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryableEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return perrors.ErrUnavailable
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_RetryableExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(2), func(context.Context) error {
		calls++
		return perrors.NewAPIError("slack", 429, "rate limited")
	})
	var apiErr *perrors.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		cancel()
		return perrors.ErrRateLimit
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Config{}, func(context.Context) error {
		calls++
		return perrors.ErrUnavailable
	})
	assert.Equal(t, 1, calls)
}

func TestConfig_Delay(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, cfg.Delay(0))
	assert.Equal(t, 200*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, 300*time.Millisecond, cfg.Delay(2))
}

func TestDo_HonoursRetryAfterAndReportsRetries(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: 2 * time.Millisecond}
	var waits []time.Duration
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error, wait time.Duration) {
		attempts = append(attempts, attempt)
		waits = append(waits, wait)
	}

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		switch calls {
		case 1:
			return &perrors.APIError{Service: "slack", StatusCode: 429, RetryAfter: time.Millisecond}
		case 2:
			return &perrors.APIError{Service: "slack", StatusCode: 429, RetryAfter: time.Minute}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits, "retry-after is capped at MaxDelay")
}

func TestDo_NoRetryHookOnFinalAttempt(t *testing.T) {
	cfg := fast(2)
	hooks := 0
	cfg.OnRetry = func(int, error, time.Duration) { hooks++ }
	_ = Do(context.Background(), cfg, func(context.Context) error { return perrors.ErrUnavailable })
	assert.Equal(t, 1, hooks)
}
