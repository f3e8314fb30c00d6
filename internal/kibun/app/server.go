package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bdobrica/Kibun/common/trace"
	"github.com/bdobrica/Kibun/common/version"
	"github.com/bdobrica/Kibun/internal/kibun/store"
)

// statusProvider is the minimal interface /status needs from the store.
type statusProvider interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// Server exposes /health, /status and the JSON API.
type Server struct {
	addr      string
	deps      Deps
	startedAt time.Time
	server    *http.Server
	mux       *http.ServeMux
	handler   http.Handler
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

type statusResponse struct {
	Status     string       `json:"status"`
	Version    string       `json:"version"`
	Commit     string       `json:"commit"`
	BuildTime  string       `json:"build_time"`
	StartedAt  time.Time    `json:"started_at"`
	UptimeSecs float64      `json:"uptime_seconds"`
	Counts     *store.Stats `json:"counts,omitempty"`
	Generator  bool         `json:"generator_configured"`
}

// NewServer creates and configures the HTTP server without starting it.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()
	s := &Server{
		addr:      addr,
		deps:      deps,
		startedAt: time.Now(),
		mux:       mux,
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	s.registerAPI(mux)
	s.handler = trace.Middleware(mux)
	return s
}

// ServeHTTP lets tests drive the server through httptest without a
// listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start listens in the background and returns once the port is open. The
// server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", s.addr, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // chat replies wait on the generator
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop shuts the server down, waiting up to five seconds for requests in
// flight.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:     "ok",
		Version:    version.Version,
		Commit:     version.GitCommit,
		BuildTime:  version.BuildTime,
		StartedAt:  s.startedAt,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
		Generator:  s.deps.GeneratorConfigured,
	}
	if s.deps.Status != nil {
		if st, err := s.deps.Status.Stats(r.Context()); err == nil {
			resp.Counts = &st
		} else {
			trace.Logger(r.Context()).Warn("http: status counts unavailable", "err", err)
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON serialises v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: failed to encode JSON response", "err", err)
	}
}
