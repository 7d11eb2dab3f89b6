package ocr

import (
	"fmt"
	"net/http"
)

// ExtractionError is a failure of the extraction service or toolchain.
// StatusCode is set when a remote service answered with a non-2xx status.
type ExtractionError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Retryable is false only for 4xx answers other than 408 and 429.
func (e *ExtractionError) Retryable() bool {
	switch {
	case e.StatusCode == 0, e.StatusCode >= 500:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func (e *ExtractionError) Kind() string { return "extraction_error" }

// UnsupportedDocumentError means the input can never be read, however often we try.
type UnsupportedDocumentError struct {
	Reason string
	Err    error
}

func (e *UnsupportedDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported document: %s: %v", e.Reason, e.Err)
	}
	return "unsupported document: " + e.Reason
}

func (e *UnsupportedDocumentError) Unwrap() error   { return e.Err }
func (e *UnsupportedDocumentError) Retryable() bool { return false }
func (e *UnsupportedDocumentError) Kind() string    { return "unsupported_document" }
