package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type classifiedErr struct {
	retryable bool
	kind      string
}

func (e classifiedErr) Error() string   { return e.kind }
func (e classifiedErr) Retryable() bool { return e.retryable }
func (e classifiedErr) Kind() string    { return e.kind }

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("boom")), "unclassified errors are retryable")
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(fmt.Errorf("wrapped: %w", classifiedErr{retryable: false, kind: "schema_mismatch"})))
	assert.True(t, IsRetryable(classifiedErr{retryable: true, kind: "extraction_error"}))
	assert.False(t, IsRetryable(&NonRetryableStageError{Stage: "scoring", Err: errors.New("x")}))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "schema_mismatch", KindOf(fmt.Errorf("x: %w", classifiedErr{kind: "schema_mismatch"})))
	assert.Equal(t, "timeout", KindOf(context.DeadlineExceeded))
	assert.Equal(t, "unclassified", KindOf(errors.New("boom")))
}

func TestStageErrorsUnwrap(t *testing.T) {
	cause := classifiedErr{kind: "extraction_error", retryable: true}
	err := &RetryableStageError{Stage: "extracting_text", Attempts: 4, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 4 attempts")

	perr := &PersistenceError{Op: "update", Err: ErrDatabase}
	assert.ErrorIs(t, perr, ErrDatabase)
}

func TestToGRPCStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{ErrNotFound, codes.NotFound},
		{fmt.Errorf("x: %w", ErrNotReady), codes.FailedPrecondition},
		{ErrBackpressure, codes.ResourceExhausted},
		{ValidationError{Field: "id", Message: "bad"}, codes.InvalidArgument},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		st, _ := status.FromError(ToGRPCStatus(tc.err))
		assert.Equal(t, tc.want, st.Code(), tc.err.Error())
	}
	assert.NoError(t, ToGRPCStatus(nil))
}
