package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/bdobrica/Kibun/common/retry"
	"github.com/bdobrica/Kibun/common/trace"
)

const (
	defaultBaseURL = "https://api.mistral.ai/v1"
	defaultModel   = "mistral-large-latest"
	defaultTimeout = 60 * time.Second
)

// Config configures the OpenAI-compatible generator.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL is the API root. Any endpoint implementing the OpenAI Chat
	// Completions API works (Mistral, OpenAI, Ollama, vLLM).
	// Defaults to https://api.mistral.ai/v1.
	BaseURL string

	// Model is the chat model. Defaults to mistral-large-latest.
	Model string

	// Timeout bounds each HTTP attempt. Defaults to 60 s.
	Timeout time.Duration

	// StructuredOutput sends WithSchema schemas as a strict json_schema
	// response format. Disable for backends that reject response_format;
	// replies are still validated by Schema.Decode.
	StructuredOutput bool

	// RequestsPerSecond throttles all calls made through this generator.
	// Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the token-bucket size used with RequestsPerSecond.
	// Defaults to 1.
	Burst int

	// Retry controls retries of 429, 5xx and transport errors.
	// Defaults to retry.DefaultConfig.
	Retry retry.Config
}

// OpenAI implements Generator on top of github.com/openai/openai-go.
type OpenAI struct {
	cfg     Config
	client  openai.Client
	limiter *rate.Limiter
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI returns a generator for cfg. The returned value is safe for
// concurrent use.
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		// Retries are handled by retry.Value so every attempt passes the limiter.
		option.WithMaxRetries(0),
	)

	return &OpenAI{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
}

// Model returns the configured model name.
func (o *OpenAI) Model() string { return o.cfg.Model }

// Generate sends messages to the Chat Completions endpoint and returns the
// first choice's content. Failures wrap ErrUnavailable.
func (o *OpenAI) Generate(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("openai generator: no messages")
	}
	params, err := o.buildParams(messages, ApplyOptions(opts))
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := retry.Value(ctx, o.cfg.Retry, func(ctx context.Context) (*openai.ChatCompletion, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(err)
		}
		resp, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil && !isRetryable(err) {
			return nil, retry.Permanent(err)
		}
		return resp, err
	})
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("%w: %w: %v", ErrUnavailable, ErrRateLimit, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %w: no choices", ErrUnavailable, ErrEmptyResponse)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, ErrEmptyResponse)
	}

	trace.Logger(ctx).Debug("llm: generation complete",
		"model", o.cfg.Model,
		"messages", len(messages),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (o *OpenAI) buildParams(messages []Message, co CallOptions) (openai.ChatCompletionNewParams, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("openai generator: unknown role %q", m.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    o.cfg.Model,
		Messages: out,
	}
	if co.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(co.MaxTokens))
	}
	if co.Temperature != nil {
		params.Temperature = openai.Float(*co.Temperature)
	}
	if co.Schema != nil && o.cfg.StructuredOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				Type: "json_schema",
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   co.Schema.Name(),
					Schema: co.Schema.Document(),
					Strict: openai.Bool(true),
				},
			},
		}
	}
	return params, nil
}

// isRetryable reports whether err is worth another attempt: rate limits,
// server errors, and anything that is not an API error (transport failures,
// timeouts).
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// LogValue keeps the API key out of structured logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", c.BaseURL),
		slog.String("model", c.Model),
		slog.Duration("timeout", c.Timeout),
		slog.Bool("structured_output", c.StructuredOutput),
		slog.Float64("requests_per_second", c.RequestsPerSecond),
		slog.Bool("api_key_set", c.APIKey != ""),
	)
}
