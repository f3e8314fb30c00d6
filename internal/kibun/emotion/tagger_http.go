package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bdobrica/Kibun/common/retry"
)

const defaultHTTPTaggerTimeout = 10 * time.Second

// HTTPTaggerConfig configures an HTTPTagger.
type HTTPTaggerConfig struct {
	// URL receives POST {"text": "..."} and answers with a JSON object
	// mapping label names (Joy/Happy, Anger/Angry, Surprise, Sadness/Sad,
	// Fear) to intensities in [0,1].
	URL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Timeout bounds each attempt. Defaults to 10 s.
	Timeout time.Duration

	// Retry controls retries of transport errors and 5xx responses.
	// Defaults to retry.DefaultConfig.
	Retry retry.Config
}

// HTTPTagger delegates tagging to an external scoring service.
type HTTPTagger struct {
	cfg    HTTPTaggerConfig
	client *http.Client
}

var _ Tagger = (*HTTPTagger)(nil)

// NewHTTPTagger returns a tagger calling cfg.URL.
func NewHTTPTagger(cfg HTTPTaggerConfig) *HTTPTagger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTaggerTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}
	return &HTTPTagger{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type tagRequest struct {
	Text string `json:"text"`
}

// Tag sends text to the scoring service.
func (h *HTTPTagger) Tag(ctx context.Context, text string) (Vector, error) {
	body, err := json.Marshal(tagRequest{Text: text})
	if err != nil {
		return Vector{}, fmt.Errorf("http tagger: marshal request: %w", err)
	}

	return retry.Value(ctx, h.cfg.Retry, func(ctx context.Context) (Vector, error) {
		return h.post(ctx, body)
	})
}

func (h *HTTPTagger) post(ctx context.Context, body []byte) (Vector, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Vector{}, retry.Permanent(fmt.Errorf("http tagger: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Vector{}, fmt.Errorf("http tagger: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Vector{}, fmt.Errorf("http tagger: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return Vector{}, fmt.Errorf("http tagger: upstream status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return Vector{}, retry.Permanent(fmt.Errorf("http tagger: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var scores map[string]float64
	if err := json.Unmarshal(data, &scores); err != nil {
		return Vector{}, retry.Permanent(fmt.Errorf("http tagger: decode response: %w", err))
	}
	return FromMap(scores), nil
}
