package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bdobrica/Kibun/common/retry"
)

type capturedRequest struct {
	Model          string           `json:"model"`
	Messages       []map[string]any `json:"messages"`
	MaxTokens      int              `json:"max_tokens"`
	ResponseFormat map[string]any   `json:"response_format"`
}

func completionJSON(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(b)
}

func newTestGenerator(url string) *OpenAI {
	return NewOpenAI(Config{
		APIKey:           "test-key",
		BaseURL:          url,
		Model:            "test-model",
		Timeout:          5 * time.Second,
		StructuredOutput: true,
		Retry:            retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond},
	})
}

func TestOpenAI_Generate(t *testing.T) {
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization: got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("  hello there  ")))
	}))
	defer srv.Close()

	out, err := newTestGenerator(srv.URL).Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "how are you?"},
	}, WithMaxTokens(64))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hello there" {
		t.Errorf("content: got %q, want %q", out, "hello there")
	}
	if got.Model != "test-model" {
		t.Errorf("model: got %q", got.Model)
	}
	if got.MaxTokens != 64 {
		t.Errorf("max_tokens: got %d, want 64", got.MaxTokens)
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(got.Messages) != len(wantRoles) {
		t.Fatalf("messages: got %d, want %d", len(got.Messages), len(wantRoles))
	}
	for i, role := range wantRoles {
		if got.Messages[i]["role"] != role {
			t.Errorf("message %d role: got %v, want %s", i, got.Messages[i]["role"], role)
		}
	}
	if got.ResponseFormat != nil {
		t.Errorf("response_format should be absent without a schema, got %v", got.ResponseFormat)
	}
}

func TestOpenAI_Generate_WithSchema(t *testing.T) {
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON(`{"label":"x","score":0.1,"tags":[]}`)))
	}))
	defer srv.Close()

	schema := MustSchema[testVerdict]("Verdict")
	if _, err := newTestGenerator(srv.URL).Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "classify"}}, WithSchema(schema)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.ResponseFormat["type"] != "json_schema" {
		t.Fatalf("response_format.type: got %v", got.ResponseFormat["type"])
	}
	js, _ := got.ResponseFormat["json_schema"].(map[string]any)
	if js["name"] != "Verdict" || js["strict"] != true {
		t.Errorf("json_schema: got %v", js)
	}
}

func TestOpenAI_Generate_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		w.Write([]byte(completionJSON("recovered")))
	}))
	defer srv.Close()

	out, err := newTestGenerator(srv.URL).Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "recovered" || calls.Load() != 2 {
		t.Errorf("got %q after %d calls", out, calls.Load())
	}
}

func TestOpenAI_Generate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
		wantRate  bool
	}{
		{name: "bad request is not retried", status: http.StatusBadRequest, body: `{"error":{"message":"bad","type":"invalid_request_error"}}`, wantCalls: 1},
		{name: "rate limit exhausts retries", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate_limit"}}`, wantCalls: 2, wantRate: true},
		{name: "empty content", status: http.StatusOK, body: completionJSON("   "), wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestGenerator(srv.URL).Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
			if got := errors.Is(err, ErrRateLimit); got != tt.wantRate {
				t.Errorf("ErrRateLimit: got %v, want %v", got, tt.wantRate)
			}
			if n := calls.Load(); n != tt.wantCalls {
				t.Errorf("calls: got %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestOpenAI_Generate_UnknownRole(t *testing.T) {
	g := newTestGenerator("http://127.0.0.1:1")
	if _, err := g.Generate(context.Background(), []Message{{Role: "tool", Content: "x"}}); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, err := g.Generate(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty conversation")
	}
}
