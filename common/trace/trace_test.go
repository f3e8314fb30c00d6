package trace_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bdobrica/Kibun/common/trace"
)

func TestGenerateID_Unique(t *testing.T) {
	a, b := trace.GenerateID(), trace.GenerateID()
	if a == b {
		t.Fatalf("expected distinct IDs, got %q twice", a)
	}
	if !strings.HasPrefix(a, "t_") {
		t.Errorf("expected t_ prefix, got %q", a)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := trace.WithTraceID(context.Background(), "t_abc")
	if got := trace.FromContext(ctx); got != "t_abc" {
		t.Errorf("got %q, want %q", got, "t_abc")
	}
	if got := trace.FromContext(context.Background()); got != "" {
		t.Errorf("expected empty ID, got %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := trace.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = trace.FromContext(r.Context())
	}))

	t.Run("reuses incoming header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(trace.Header, "client-id-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if seen != "client-id-1" {
			t.Errorf("context ID: got %q, want %q", seen, "client-id-1")
		}
		if got := w.Header().Get(trace.Header); got != "client-id-1" {
			t.Errorf("response header: got %q, want %q", got, "client-id-1")
		}
	})

	t.Run("generates when missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if seen == "" || w.Header().Get(trace.Header) != seen {
			t.Errorf("expected generated ID echoed, context %q header %q", seen, w.Header().Get(trace.Header))
		}
	})
}
