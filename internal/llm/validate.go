package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/contract-intelligence/internal/schema"
)

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// fieldValidators holds one compiled schema per extraction field.
type fieldValidators map[string]*jsonschema.Schema

func compileFieldValidators(fields []schema.Field) (fieldValidators, error) {
	out := make(fieldValidators, len(fields))
	for _, f := range fields {
		s, err := compileSchema(f.Name+".json", f.JSONSchema())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[f.Name] = s
	}
	return out, nil
}

func (v fieldValidators) validate(field string, value any) error {
	s, ok := v[field]
	if !ok {
		return fmt.Errorf("no validator for %q", field)
	}
	return s.Validate(value)
}
