// Package retry provides a bounded-attempt, delayed-retry envelope for
// port invocations.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy controls retry behavior for a wrapped unit of work.
type Policy struct {
	// MaxAttempts is the maximum number of attempts. Values below 1 are
	// treated as 1.
	MaxAttempts int
	// Wait is the delay between consecutive attempts.
	Wait time.Duration
}

// DefaultPolicy returns sensible defaults for port invocations.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Wait:        time.Second,
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do invokes work until it succeeds or the policy is exhausted, waiting
// p.Wait between attempts. On exhaustion the last failure is returned,
// never swallowed. Context cancellation stops retrying immediately;
// work may have side effects on every attempt, so callers accept the
// idempotency caveat.
func Do[T any](ctx context.Context, p Policy, work func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	attempts := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := work()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(ctx, err) {
			break
		}
		if err := sleep(ctx, p.Wait); err != nil {
			return zero, lastErr
		}
	}
	return zero, lastErr
}

// shouldRetry reports whether another attempt is worthwhile. Context
// errors are never retried.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
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
