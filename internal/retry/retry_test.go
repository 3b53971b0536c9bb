package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"shelver/internal/retry"
)

var errFlaky = errors.New("flaky")

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	attempts, err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3}, func(int) error {
		calls++
		return nil
	})
	if err != nil || attempts != 1 || calls != 1 {
		t.Fatalf("attempts=%d calls=%d err=%v", attempts, calls, err)
	}
}

func TestDoRetriesTransientUntilExhausted(t *testing.T) {
	var delays []time.Duration
	var retried []int
	policy := retry.Policy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
		IsRetryable: func(err error) bool { return errors.Is(err, errFlaky) },
		OnRetry:     func(attempt int, _ error) { retried = append(retried, attempt) },
		Sleep:       recordingSleep(&delays),
	}
	attempts, err := retry.Do(context.Background(), policy, func(int) error { return errFlaky })
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 || delays[0] != 2*time.Second {
		t.Fatalf("expected two 2s delays between attempts, got %v", delays)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Fatalf("unexpected OnRetry calls %v", retried)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	var delays []time.Duration
	permanent := errors.New("denied")
	policy := retry.Policy{
		MaxAttempts: 3,
		Delay:       time.Second,
		IsRetryable: func(err error) bool { return errors.Is(err, errFlaky) },
		Sleep:       recordingSleep(&delays),
	}
	attempts, err := retry.Do(context.Background(), policy, func(int) error { return permanent })
	if !errors.Is(err, permanent) || attempts != 1 {
		t.Fatalf("attempts=%d err=%v", attempts, err)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no delay, got %v", delays)
	}
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	var delays []time.Duration
	policy := retry.Policy{
		MaxAttempts: 3,
		IsRetryable: func(error) bool { return true },
		Sleep:       recordingSleep(&delays),
	}
	attempts, err := retry.Do(context.Background(), policy, func(attempt int) error {
		if attempt < 2 {
			return errFlaky
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Fatalf("attempts=%d err=%v", attempts, err)
	}
}

func TestDoReturnsWhenWaitIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := retry.Policy{
		MaxAttempts: 3,
		Delay:       time.Hour,
		IsRetryable: func(error) bool { return true },
	}
	attempts, err := retry.Do(ctx, policy, func(int) error { return errFlaky })
	if attempts != 1 || !errors.Is(err, errFlaky) {
		t.Fatalf("attempts=%d err=%v", attempts, err)
	}
}

func TestDoTreatsNonPositiveAttemptsAsOne(t *testing.T) {
	calls := 0
	attempts, _ := retry.Do(context.Background(), retry.Policy{IsRetryable: func(error) bool { return true }}, func(int) error {
		calls++
		return errFlaky
	})
	if attempts != 1 || calls != 1 {
		t.Fatalf("attempts=%d calls=%d", attempts, calls)
	}
}

func TestSleepHonoursDelay(t *testing.T) {
	start := time.Now()
	if err := retry.Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("Sleep returned early")
	}
}
