package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID  contextKey = "request_id"
	ContextKeyContractID contextKey = "contract_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithContractID tags the context with the contract being processed.
func WithContractID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyContractID, id)
}

// ContractIDFromContext extracts the contract ID from context
func ContractIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyContractID).(string); ok {
		return id
	}
	return ""
}

// WithOptionalTimeout applies timeout only when it is positive.
func WithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
