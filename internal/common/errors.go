package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrNotReady     = errors.New("contract not ready")
	ErrBackpressure = errors.New("dispatcher queue is full, retry later")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Classified is implemented by adapter errors that know whether another
// attempt can succeed.
type Classified interface {
	error
	Retryable() bool
	Kind() string
}

// IsRetryable reports whether err deserves another attempt. Errors that carry
// no classification are retryable; caller cancellation never is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var nr *NonRetryableStageError
	if errors.As(err, &nr) {
		return false
	}
	var c Classified
	if errors.As(err, &c) {
		return c.Retryable()
	}
	return true
}

// KindOf returns the classification kind of err, or "unclassified".
func KindOf(err error) string {
	var c Classified
	if errors.As(err, &c) {
		return c.Kind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "unclassified"
}

// RetryableStageError is a stage failure that exhausted its retry budget.
type RetryableStageError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *RetryableStageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *RetryableStageError) Unwrap() error { return e.Err }

// NonRetryableStageError is a stage failure no retry can fix.
type NonRetryableStageError struct {
	Stage string
	Err   error
}

func (e *NonRetryableStageError) Error() string {
	return fmt.Sprintf("stage %s failed permanently: %v", e.Stage, e.Err)
}

func (e *NonRetryableStageError) Unwrap() error { return e.Err }

// PersistenceError means the store could not be written even after retrying.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

// ToGRPCStatus maps application errors onto gRPC status errors.
func ToGRPCStatus(err error) error {
	var ve ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ve), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, ErrNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrBackpressure):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return InternalError(err.Error())
	}
}
