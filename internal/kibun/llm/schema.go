package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a JSON schema reflected from a Go type. Document is sent to the
// backend as a response format; the compiled form validates replies.
type Schema struct {
	name     string
	document map[string]any
	compiled *sjsonschema.Schema
}

// NewSchema reflects T into a strict JSON schema: no additional properties
// and every property required, as OpenAI structured outputs demand.
func NewSchema[T any](name string) (*Schema, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		Anonymous:                  true,
	}
	var v T
	raw, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("schema %s: marshal: %w", name, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schema %s: decode: %w", name, err)
	}
	makeStrict(doc)

	strict, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("schema %s: re-encode: %w", name, err)
	}
	compiled, err := sjsonschema.CompileString(name+".json", string(strict))
	if err != nil {
		return nil, fmt.Errorf("schema %s: compile: %w", name, err)
	}
	return &Schema{name: name, document: doc, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level variables. It panics on error.
func MustSchema[T any](name string) *Schema {
	s, err := NewSchema[T](name)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name sent to the backend.
func (s *Schema) Name() string { return s.name }

// Document returns the schema as a JSON-ready map. Callers must not modify it.
func (s *Schema) Document() map[string]any { return s.document }

// Decode strips code fences from raw, validates the JSON against the schema
// and unmarshals it into v. Any failure wraps ErrMalformedOutput.
func (s *Schema) Decode(raw string, v any) error {
	body := StripCodeFences(raw)
	if body == "" {
		return fmt.Errorf("%w: %s: empty output", ErrMalformedOutput, s.name)
	}

	doc, err := parseJSON(body)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedOutput, s.name, err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedOutput, s.name, err)
	}

	// Re-encoding the validated document keeps the accepted and the decoded
	// bytes identical when parseJSON had to extract an embedded object.
	clean, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedOutput, s.name, err)
	}
	if err := json.Unmarshal(clean, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedOutput, s.name, err)
	}
	return nil
}

// StripCodeFences removes a surrounding Markdown code fence (``` or ```json)
// and the whitespace around it. Text without fences is returned trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if i := strings.IndexByte(rest, '\n'); i >= 0 && !strings.ContainsAny(rest[:i], "{[\"") {
			rest = rest[i+1:]
		} else {
			rest = strings.TrimPrefix(rest, "json")
		}
		s = strings.TrimSpace(rest)
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseJSON decodes body, falling back to the outermost {...} span when the
// model wrapped the object in prose.
func parseJSON(body string) (any, error) {
	var doc any
	err := json.Unmarshal([]byte(body), &doc)
	if err == nil {
		return doc, nil
	}
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start == -1 || end <= start {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(body[start : end+1]))
	if derr := dec.Decode(&doc); derr != nil {
		return nil, derr
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON object")
	}
	return doc, nil
}

// makeStrict forces additionalProperties=false and marks every property
// required on each object node, recursively.
func makeStrict(node map[string]any) {
	if t, ok := node["type"].(string); ok && t == "object" {
		node["additionalProperties"] = false
		if props, ok := node["properties"].(map[string]any); ok && len(props) > 0 {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			sort.Strings(required)
			node["required"] = required
		}
	}
	if props, ok := node["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				makeStrict(pm)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		makeStrict(items)
	}
}
