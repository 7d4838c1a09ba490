package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialSchedule(t *testing.T) {
	backoff := Exponential(5*time.Second, 60*time.Second)
	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, expected := range want {
		assert.Equal(t, expected, backoff(i+1), "attempt %d", i+1)
	}
}

func TestFixedSchedule(t *testing.T) {
	backoff := Fixed(30 * time.Second)
	assert.Equal(t, 30*time.Second, backoff(1))
	assert.Equal(t, 30*time.Second, backoff(7))
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3}, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		Backoff:     Fixed(time.Millisecond),
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	var notified []int
	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Backoff:     Fixed(time.Millisecond),
		Notify: func(_ error, attempt int, _ time.Duration) {
			notified = append(notified, attempt)
		},
	}, func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	// No notification after the final attempt.
	assert.Equal(t, []int{1, 2}, notified)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	retryable := errors.New("retryable")
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		Backoff:     Fixed(time.Millisecond),
		RetryIf:     func(err error) bool { return errors.Is(err, retryable) },
	}, func(context.Context) error {
		calls++
		if calls == 2 {
			return fatal
		}
		return retryable
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 2, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, Policy{
		MaxAttempts: 10,
		Backoff:     Fixed(time.Hour),
	}, func(context.Context) error {
		calls++
		return errors.New("always")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoRejectsInvalidPolicy(t *testing.T) {
	err := Do(context.Background(), Policy{MaxAttempts: 0}, func(context.Context) error { return nil })
	assert.Error(t, err)
}
