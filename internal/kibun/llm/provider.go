// Package llm is the boundary between Kibun and any large-language backend.
//
// Everything above this package talks to a Generator: an ordered list of
// role-tagged messages goes in, one assistant reply comes out. The OpenAI
// implementation speaks the Chat Completions API, which Mistral, Ollama,
// vLLM and most hosted providers also expose.
//
// Structured replies (classification, objectives, emotion scores) are
// requested with WithSchema and checked with Schema.Decode, which strips
// Markdown code fences and validates the JSON before it is unmarshalled.
package llm

import (
	"context"
	"errors"
)

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sentinel errors returned by generators and schema decoding.
var (
	// ErrUnavailable wraps every failure to obtain a reply from the backend:
	// transport errors, timeouts, non-retryable API errors and exhausted
	// retries.
	ErrUnavailable = errors.New("llm: generation backend unavailable")

	// ErrRateLimit is joined with ErrUnavailable when the backend answered
	// 429 on the last attempt.
	ErrRateLimit = errors.New("llm: upstream rate limit exceeded")

	// ErrEmptyResponse is returned when the backend replied with no content.
	ErrEmptyResponse = errors.New("llm: empty response")

	// ErrMalformedOutput is returned by Schema.Decode when the reply is not
	// JSON or does not satisfy the schema.
	ErrMalformedOutput = errors.New("llm: malformed structured output")
)

// Message is one entry of the conversation sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the next assistant message for a conversation.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts ...Option) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, messages []Message, opts ...Option) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	return f(ctx, messages, opts...)
}

// CallOptions holds per-call settings. Backends ignore the ones they do not
// support.
type CallOptions struct {
	// Schema asks for a reply conforming to a JSON schema.
	Schema *Schema
	// MaxTokens caps the reply length. Zero means backend default.
	MaxTokens int
	// Temperature overrides sampling temperature when non-nil.
	Temperature *float64
}

// Option mutates CallOptions.
type Option func(*CallOptions)

// WithSchema requests structured output matching s.
func WithSchema(s *Schema) Option {
	return func(o *CallOptions) { o.Schema = s }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(o *CallOptions) { o.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *CallOptions) { o.Temperature = &t }
}

// ApplyOptions folds opts into a CallOptions value.
func ApplyOptions(opts []Option) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
