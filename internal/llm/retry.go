package llm

import (
	"context"
	"time"

	"github.com/ppiankov/reqtrace/internal/model"
)

// RetryPolicy bounds retries of transient failures
type RetryPolicy struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Cap on any single delay
}

// RetryPolicyFromModel converts the retry section of the run config
func RetryPolicyFromModel(cfg model.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
}

// Backoff returns the delay after the given failed attempt (1-based):
// BaseDelay doubled per attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// retrySleepFunc waits between attempts; tests replace it
var retrySleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, returns a non-transient error, the policy
// runs out of attempts, or ctx is done. onRetry, if set, is told about each
// failed attempt that will be retried.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error), onRetry func(attempt int, delay time.Duration, err error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !model.IsTransient(err) || attempt == attempts {
			break
		}

		delay := policy.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if err := retrySleepFunc(ctx, delay); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}
