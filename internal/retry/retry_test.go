package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 3}, func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("unexpected result: %q", got)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_FailTwiceThenSucceed(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 3}, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("attempt %d failed", calls)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("unexpected result: %d", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	var lastErr error
	_, err := Do(context.Background(), Policy{MaxAttempts: 4}, func() (int, error) {
		calls++
		lastErr = fmt.Errorf("attempt %d failed", calls)
		return 0, lastErr
	})
	if !errors.Is(err, lastErr) {
		t.Errorf("expected last error %v, got %v", lastErr, err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestDo_ZeroMaxAttemptsMeansOne(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func() (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCanceledStopsWithoutAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 5}, func() (int, error) {
		calls++
		return 0, errors.New("unexpected call")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected 0 calls, got %d", calls)
	}
}

func TestDo_ContextErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 5}, func() (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_WaitsBetweenAttempts(t *testing.T) {
	start := time.Now()
	calls := 0
	_, _ = Do(context.Background(), Policy{MaxAttempts: 3, Wait: 20 * time.Millisecond}, func() (int, error) {
		calls++
		return 0, errors.New("always fails")
	})
	elapsed := time.Since(start)
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	// Two waits between three attempts.
	if elapsed < 40*time.Millisecond {
		t.Errorf("expected at least 40ms elapsed, got %v", elapsed)
	}
}

func TestDo_CancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Do(ctx, Policy{MaxAttempts: 10, Wait: time.Minute}, func() (int, error) {
			calls++
			return 0, errors.New("boom")
		})
		if err == nil {
			t.Error("expected error")
		}
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
