// Package retry provides the retry/backoff policy applied around pipeline
// stages and store writes.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joseph-ayodele/contract-intelligence/internal/common"
)

var (
	// ErrMaxRetriesExceeded is matched by every ExhaustedError.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrContextCancelled is returned when the context ends while waiting.
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// ExhaustedError carries the last failure once the retry budget is spent.
type ExhaustedError struct {
	Retries int
	Err     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d retries: %v", ErrMaxRetriesExceeded, e.Retries, e.Err)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrMaxRetriesExceeded, e.Err} }

// Policy configures retry behavior.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff; 0 means uncapped.
	MaxDelay time.Duration
	// IsRetryable classifies failures; nil means common.IsRetryable.
	IsRetryable func(error) bool
	// Sleep waits for d or until ctx ends; nil means a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns three retries starting at one second, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		IsRetryable: common.IsRetryable,
	}
}

// Attempt describes one failed invocation.
type Attempt struct {
	RetryCount int // incremented count after this failure
	Err        error
	Delay      time.Duration // wait before the next attempt; 0 when giving up
	WillRetry  bool
}

// Backoff returns BaseDelay * 2^(retryCount-1), capped at MaxDelay.
func (p Policy) Backoff(retryCount int) time.Duration {
	if retryCount < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < retryCount; i++ {
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
		if d > time.Duration(1<<62)/2 {
			break
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails with a non-retryable error, or the retry
// budget is spent. notify, when non-nil, observes every failure before the
// wait; an error from notify aborts the loop and is returned as is.
//
// Non-retryable errors are returned unchanged and do not count as retries.
// Exhaustion returns *ExhaustedError.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify func(Attempt) error) error {
	isRetryable := p.IsRetryable
	if isRetryable == nil {
		isRetryable = common.IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		retries++
		a := Attempt{RetryCount: retries, Err: err, WillRetry: retries <= p.MaxRetries}
		if a.WillRetry {
			a.Delay = p.Backoff(retries)
		}
		if notify != nil {
			if nerr := notify(a); nerr != nil {
				return nerr
			}
		}
		if !a.WillRetry {
			return &ExhaustedError{Retries: p.MaxRetries, Err: err}
		}
		if err := sleep(ctx, a.Delay); err != nil {
			return fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
	}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
