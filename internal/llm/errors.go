package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ServiceError is a failure talking to the model provider.
type ServiceError struct {
	Provider   string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed: transport failures,
// timeouts, 408, 429 and 5xx are; other 4xx are not.
func (e *ServiceError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

func (e *ServiceError) Kind() string { return "extraction_service_error" }

// SchemaMismatchError means the model replied with something that cannot be
// mapped onto the extraction schema.
type SchemaMismatchError struct {
	Reason string
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema mismatch: %s: %v", e.Reason, e.Err)
	}
	return "schema mismatch: " + e.Reason
}

func (e *SchemaMismatchError) Unwrap() error   { return e.Err }
func (e *SchemaMismatchError) Retryable() bool { return false }
func (e *SchemaMismatchError) Kind() string    { return "schema_mismatch" }
