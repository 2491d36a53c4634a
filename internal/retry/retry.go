// Package retry runs notifier calls under capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	perrors "github.com/p-blackswan/project-health/internal/errors"
)

// Config bounds how often and how long a call is retried.
//
// OnRetry, when set, is called before each wait with the 1-based number of
// the attempt that failed.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	OnRetry     func(attempt int, err error, wait time.Duration)
}

// DefaultConfig returns the notifier retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Delay is the un-jittered wait after the n-th failed attempt (0-based).
func (c Config) Delay(n int) time.Duration {
	d := c.BaseDelay
	for i := 0; i < n && d < c.MaxDelay; i++ {
		d *= 2
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// wait picks the pause before the next attempt. A server-provided
// Retry-After wins over the computed backoff, still capped at MaxDelay.
func (c Config) wait(n int, err error) time.Duration {
	var apiErr *perrors.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		if c.MaxDelay > 0 && apiErr.RetryAfter > c.MaxDelay {
			return c.MaxDelay
		}
		return apiErr.RetryAfter
	}
	d := c.Delay(n)
	if c.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The last error from fn is returned, or the
// context error if ctx ends during a wait.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := max(cfg.MaxAttempts, 1)
	var err error
	for n := 0; n < attempts; n++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if n == attempts-1 || !perrors.IsRetryable(err) {
			break
		}

		d := cfg.wait(n, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(n+1, err, d)
		}
		if serr := sleep(ctx, d); serr != nil {
			return serr
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
