// Package retry implements a small explicit retry loop driven by a policy
// value, so call sites declare their own attempt budget and backoff and
// tests can inject fast schedules.
package retry

import (
	"context"
	"fmt"
	"time"
)

// BackoffFunc returns the delay to wait after a failed attempt.
// attempt is 1-based.
type BackoffFunc func(attempt int) time.Duration

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Backoff computes the delay between attempts. Nil means no delay.
	Backoff BackoffFunc
	// RetryIf decides whether an error is retryable. Nil retries all errors.
	RetryIf func(error) bool
	// Notify, when set, observes each failed attempt before the wait.
	Notify func(err error, attempt int, delay time.Duration)
}

// Fixed waits the same duration between every attempt.
func Fixed(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Exponential doubles the delay each attempt, starting at base and never
// exceeding cap.
func Exponential(base, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= cap {
				return cap
			}
		}
		if d > cap {
			return cap
		}
		return d
	}
}

// Do runs op until it succeeds, the policy is exhausted, a non-retryable
// error occurs, or ctx is cancelled. The last error is returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: invalid MaxAttempts %d", p.MaxAttempts)
	}
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if p.Notify != nil {
			p.Notify(err, attempt, delay)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
