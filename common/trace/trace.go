// Package trace carries a request correlation ID through context.Context so
// log lines from the HTTP handler, the services, and the collaborator calls
// of one request can be joined.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header used to accept and echo trace IDs.
const Header = "X-Request-ID"

type traceKey struct{}

// GenerateID returns a fresh trace ID.
func GenerateID() string {
	return "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithTraceID returns a child context carrying id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// FromContext extracts the trace ID from ctx, returning "" if absent.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}

// Logger returns slog.Default() annotated with the trace ID of ctx, if any.
func Logger(ctx context.Context) *slog.Logger {
	if id := FromContext(ctx); id != "" {
		return slog.Default().With("trace_id", id)
	}
	return slog.Default()
}

// Middleware reuses an incoming X-Request-ID (or generates one), stores it in
// the request context and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" || len(id) > 128 {
			id = GenerateID()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), id)))
	})
}
