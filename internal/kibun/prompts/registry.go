// Package prompts loads the instruction templates sent to the generation
// backend.
//
// Templates are kept in a YAML document keyed by name; each value is a Go
// text/template. The document embedded in the binary supplies every name,
// and an operator file may override any subset of them.
//
//	reg, err := prompts.LoadFile("/etc/kibun/prompts.yaml")
//	text, err := reg.Render(prompts.Classification, prompts.EntriesData{Entries: block})
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Template names.
const (
	ChatSystem     = "chat_system"
	Classification = "classification"
	Objectives     = "objectives"
	EmotionTagging = "emotion_tagging"
)

var requiredNames = []string{ChatSystem, Classification, Objectives, EmotionTagging}

//go:embed prompts.yaml
var embedded []byte

// ChatSystemData feeds the chat_system template.
type ChatSystemData struct {
	UserName        string
	DominantEmotion string
	ProfileSummary  string
}

// EntriesData feeds the classification and objectives templates.
type EntriesData struct {
	Entries string
}

// Registry holds parsed templates. It is read-only after construction and
// safe for concurrent use.
type Registry struct {
	raw       map[string]string
	templates map[string]*template.Template
}

// Default returns the registry built from the embedded document. The
// document is parsed once and the registry is shared.
var Default = sync.OnceValue(func() *Registry {
	r, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("prompts: embedded templates are invalid: %v", err))
	}
	return r
})

// Parse builds a registry from a complete YAML document.
func Parse(data []byte) (*Registry, error) {
	raw, err := decode(data)
	if err != nil {
		return nil, err
	}
	return build(raw)
}

// LoadFile overlays the templates in path onto the embedded defaults. An
// empty path returns Default().
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompts: read %s: %w", path, err)
	}
	overrides, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("prompts: %s: %w", path, err)
	}
	base, err := decode(embedded)
	if err != nil {
		return nil, err
	}
	for name, text := range overrides {
		base[name] = text
	}
	return build(base)
}

// Render executes the named template with data.
func (r *Registry) Render(name string, data any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("prompts: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompts: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Text returns the unrendered template source for name.
func (r *Registry) Text(name string) string {
	return r.raw[name]
}

// Names lists the loaded template names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.raw))
	for n := range r.raw {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func decode(data []byte) (map[string]string, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if raw == nil {
		raw = map[string]string{}
	}
	return raw, nil
}

func build(raw map[string]string) (*Registry, error) {
	for _, name := range requiredNames {
		if raw[name] == "" {
			return nil, fmt.Errorf("prompts: missing template %q", name)
		}
	}
	r := &Registry{raw: raw, templates: make(map[string]*template.Template, len(raw))}
	for name, text := range raw {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("prompts: parse %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}
