// Package retry runs an operation under a bounded, fixed-delay retry policy.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes how many times an operation runs and which failures
// warrant another attempt.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// IsRetryable reports whether err should be retried. Nil means never.
	IsRetryable func(error) bool
	// OnRetry is called after a retryable failure, before the delay.
	OnRetry func(attempt int, err error)
	// Sleep overrides the delay implementation (useful for tests).
	Sleep func(context.Context, time.Duration) error
}

// Do runs op until it succeeds, fails permanently, or exhausts the policy.
// It returns the number of attempts made together with the last error.
// Cancelling ctx ends the wait between attempts but never interrupts op.
func Do(ctx context.Context, policy Policy, op func(attempt int) error) (int, error) {
	if ctx == nil {
		return 0, errors.New("retry: nil context")
	}
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if policy.IsRetryable == nil || !policy.IsRetryable(err) || attempt == attempts {
			return attempt, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err)
		}
		if sleepErr := policy.sleep(ctx, policy.Delay); sleepErr != nil {
			return attempt, lastErr
		}
	}
	return attempts, lastErr
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	return Sleep(ctx, delay)
}

// Sleep blocks for delay or until ctx is done.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
