package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type permanent struct{}

func (permanent) Error() string   { return "corrupt document" }
func (permanent) Retryable() bool { return false }
func (permanent) Kind() string    { return "unsupported_document" }

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestBackoff(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(5))
	assert.Equal(t, time.Second, p.Backoff(500))

	uncapped := Policy{BaseDelay: time.Millisecond}
	assert.Equal(t, 8*time.Millisecond, uncapped.Backoff(4))
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	var seen []Attempt
	p := Policy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, Sleep: recordingSleep(&delays)}

	calls := 0
	err := p.Do(t.Context(), func(context.Context) error {
		calls++
		if calls < 3 {
			return context.DeadlineExceeded
		}
		return nil
	}, func(a Attempt) error {
		seen = append(seen, a)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)
	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[0].RetryCount)
	assert.Equal(t, 2, seen[1].RetryCount)
	assert.True(t, seen[1].WillRetry)
}

func TestDoExhausts(t *testing.T) {
	var delays []time.Duration
	p := Policy{MaxRetries: 3, BaseDelay: time.Millisecond, Sleep: recordingSleep(&delays)}
	boom := errors.New("service unavailable")

	calls := 0
	var last Attempt
	err := p.Do(t.Context(), func(context.Context) error {
		calls++
		return boom
	}, func(a Attempt) error {
		last = a
		return nil
	})

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, 4, calls, "first attempt plus three retries")
	assert.Len(t, delays, 3)
	assert.Equal(t, 4, last.RetryCount)
	assert.False(t, last.WillRetry)
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	notified := 0
	p := Policy{MaxRetries: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Do(t.Context(), func(context.Context) error {
		calls++
		return permanent{}
	}, func(Attempt) error {
		notified++
		return nil
	})

	assert.Equal(t, permanent{}, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, notified, "non-retryable failures consume no retries")
}

func TestDoNotifyErrorAborts(t *testing.T) {
	stop := errors.New("store down")
	p := Policy{MaxRetries: 3, BaseDelay: time.Millisecond}
	err := p.Do(t.Context(), func(context.Context) error { return errors.New("x") }, func(Attempt) error { return stop })
	assert.Equal(t, stop, err)
}

func TestDoContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	p := Policy{MaxRetries: 5, BaseDelay: time.Hour}

	err := p.Do(ctx, func(context.Context) error {
		cancel()
		return errors.New("flaky")
	}, nil)

	assert.ErrorIs(t, err, ErrContextCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
