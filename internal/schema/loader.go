// Package schema loads a caller-supplied JSON Schema and compiles it into a
// strict validator. "Strict" mirrors structured-output mode: every object
// forbids unknown keys, every declared property is required, and every leaf
// accepts null so partial per-chunk results remain representable.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Model is a compiled, read-only validator plus the JSON-serializable shape
// descriptor passed to the model call. Safe for concurrent use.
type Model struct {
	descriptor map[string]any
	compiled   *jsonschema.Schema
}

// Load reads a JSON Schema file from disk and builds a Model.
func Load(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return FromMap(m)
}

// FromMap builds a Model from an in-memory schema map.
func FromMap(m map[string]any) (*Model, error) {
	strict := strictify(m)
	sm, ok := strict.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema root must be an object")
	}

	b, err := json.Marshal(sm)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Model{descriptor: sm, compiled: compiled}, nil
}

// Descriptor returns the strictified schema map sent along with model calls.
func (m *Model) Descriptor() map[string]any {
	return m.descriptor
}

// DescriptorJSON returns the descriptor as indented JSON for prompts.
func (m *Model) DescriptorJSON() string {
	b, _ := json.MarshalIndent(m.descriptor, "", "  ")
	return string(b)
}

// Validate checks raw JSON bytes against the compiled schema.
func (m *Model) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return m.ValidateValue(v)
}

// ValidateValue checks a decoded JSON value against the compiled schema.
func (m *Model) ValidateValue(v any) error {
	if err := m.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// strictify rewrites a schema fragment for strict validation: objects get
// additionalProperties=false and all properties required, leaf types accept
// null. The input map is not mutated.
func strictify(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m)+2)
	for k, val := range m {
		out[k] = val
	}

	switch m["type"] {
	case "object":
		props, _ := m["properties"].(map[string]any)
		newProps := make(map[string]any, len(props))
		required := make([]string, 0, len(props))
		for name := range props {
			required = append(required, name)
		}
		// Keep the descriptor byte-stable across runs; map order would
		// otherwise shuffle the required list from build to build.
		sort.Strings(required)
		for _, name := range required {
			newProps[name] = strictify(props[name])
		}
		out["properties"] = newProps
		out["required"] = required
		out["additionalProperties"] = false
	case "array":
		if items, ok := m["items"]; ok {
			out["items"] = strictify(items)
		} else {
			// Arrays without an item schema default to strings, matching the
			// structured-output requirement that items always be typed.
			out["items"] = map[string]any{"type": []any{"string", "null"}}
		}
		out["type"] = []any{"array", "null"}
	case "string", "integer", "number", "boolean":
		out["type"] = []any{m["type"], "null"}
	}
	return out
}
