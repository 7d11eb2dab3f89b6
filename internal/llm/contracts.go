package llm

import (
	"context"

	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
)

// ExtractRequest is the input of one structured extraction.
type ExtractRequest struct {
	Text     string
	Filename string
}

// Extraction is the normalized result of a structured extraction.
type Extraction struct {
	Data entity.StructuredData
	Raw  []byte // model output after fence stripping

	// Dropped lists keys the model returned that are not part of the schema.
	Dropped []string
	// Invalid lists schema fields whose value failed validation and were marked absent.
	Invalid []string
	Model   string
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (Extraction, error)
}

// Prompt is a provider-neutral chat prompt.
type Prompt struct {
	System string
	User   string
	// Schema is the JSON Schema the response must satisfy; providers that
	// cannot enforce it inline it into the prompt.
	Schema map[string]any
}

// Completer sends a prompt to a model provider and returns the raw text reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Name() string
}
