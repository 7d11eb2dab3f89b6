package llm

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/contract-intelligence/internal/schema"
)

// DefaultMaxInputChars bounds how much contract text is sent to the model.
const DefaultMaxInputChars = 30000

// BuildSystemPrompt lists every schema field with its category and type, and
// the formatting rules for the reply.
func BuildSystemPrompt(fields []schema.Field) string {
	var b strings.Builder
	b.WriteString("You are a contract analyst. Extract the fields below from the contract text. ")
	b.WriteString("Return ONLY a JSON object of the form {\"fields\": {\"<field>\": {\"value\": <value>, \"confidence\": <0..1>}}}. ")
	b.WriteString("Use null as the value when the contract does not state a field, with confidence 0. ")
	b.WriteString("Confidence is how sure you are the value is stated in the text, not a guess. ")
	b.WriteString("Use ISO-8601 dates (YYYY-MM-DD) and 3-letter ISO 4217 currency codes. ")
	b.WriteString("Amounts are plain numbers without symbols or thousands separators. ")
	b.WriteString("Do not invent fields that are not listed.\n\nFields:\n")

	var current string
	for _, f := range fields {
		if cat := f.Category.Label(); cat != current {
			current = cat
			b.WriteString("\n")
			b.WriteString(cat)
			b.WriteString(":\n")
		}
		b.WriteString("- ")
		b.WriteString(f.Name)
		b.WriteString(" (")
		b.WriteString(typeHint(f.Type))
		b.WriteString("): ")
		b.WriteString(f.Description)
		b.WriteString("\n")
	}
	return b.String()
}

func typeHint(t schema.Type) string {
	switch t {
	case schema.TypeStringList:
		return "list of strings"
	case schema.TypeObjectList:
		return "list of objects"
	default:
		return string(t)
	}
}

// BuildUserPrompt packages the filename hint and the contract text, cut to maxChars runes.
func BuildUserPrompt(req ExtractRequest, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	var b strings.Builder
	if fn := strings.TrimSpace(req.Filename); fn != "" {
		b.WriteString("Filename: ")
		b.WriteString(fn)
		b.WriteString("\n")
	}
	text := strings.TrimSpace(req.Text)
	runes := []rune(text)
	b.WriteString("\nContract text:\n")
	if len(runes) > maxChars {
		b.WriteString(string(runes[:maxChars]))
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// InlineSchema appends the response schema to the system prompt for providers
// that have no native schema parameter.
func InlineSchema(p Prompt) string {
	if p.Schema == nil {
		return p.System
	}
	return p.System + "\n\nJSON Schema:\n" + mustJSON(p.Schema)
}
