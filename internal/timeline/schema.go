package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/clinical-timeline/constants"
)

// DatePattern accepts the bucket keys Merge can produce with the default
// vocabulary.
const DatePattern = `^(\d{1,2}-[A-Za-z]{3}-\d{4}|UNKNOWN)$`

// BuildTimelineJSONSchema returns the JSON-Schema of the timeline file as a
// generic map.
func BuildTimelineJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}

	lab := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"record_type", "source_file", "tests"},
		"properties": map[string]any{
			"record_type": map[string]any{"const": string(constants.LabResult)},
			"source_file": map[string]any{"type": "string", "minLength": 1},
			"tests": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": str,
				},
			},
		},
	}

	note := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"record_type", "source_file", "doctor", "section_type", "text", "subsections", "allergies"},
		"properties": map[string]any{
			"record_type":  map[string]any{"const": string(constants.ClinicalNote)},
			"source_file":  map[string]any{"type": "string", "minLength": 1},
			"doctor":       str,
			"section_type": str,
			"text": map[string]any{
				"type":                 "object",
				"additionalProperties": str,
			},
			"subsections": map[string]any{"type": "array", "items": str},
			"allergies":   map[string]any{"type": []string{"string", "null"}},
		},
	}

	return map[string]any{
		"type":          "object",
		"propertyNames": map[string]any{"pattern": DatePattern},
		"additionalProperties": map[string]any{
			"type":  "array",
			"items": map[string]any{"oneOf": []any{lab, note}},
		},
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(BuildTimelineJSONSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("timeline.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("timeline.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Validate checks encoded timeline data against the timeline schema.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal timeline: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("timeline does not match schema: %w", err)
	}
	return nil
}
