package pipeline

import "fmt"

// LowQualityTextError means the text layer is too thin to extract from.
// Retrying against the same document cannot help.
type LowQualityTextError struct {
	Chars  int
	Method string
}

func (e *LowQualityTextError) Error() string {
	return fmt.Sprintf("extracted text too short (%d chars via %s)", e.Chars, e.Method)
}

func (e *LowQualityTextError) Retryable() bool { return false }
func (e *LowQualityTextError) Kind() string    { return "low_quality_text" }

// MissingInputError is a transition guard failure: the previous stage's
// output is absent.
type MissingInputError struct {
	Input string
}

func (e *MissingInputError) Error() string   { return "missing stage input: " + e.Input }
func (e *MissingInputError) Retryable() bool { return false }
func (e *MissingInputError) Kind() string    { return "missing_input" }

// panicError wraps a recovered panic; it stays unclassified.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("stage panic: %v", e.value) }
