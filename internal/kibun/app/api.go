package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bdobrica/Kibun/common/trace"
	"github.com/bdobrica/Kibun/internal/kibun/auth"
	"github.com/bdobrica/Kibun/internal/kibun/chat"
	"github.com/bdobrica/Kibun/internal/kibun/diary"
	"github.com/bdobrica/Kibun/internal/kibun/emotion"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
	"github.com/bdobrica/Kibun/internal/kibun/memory"
	"github.com/bdobrica/Kibun/internal/kibun/profile"
	"github.com/bdobrica/Kibun/internal/kibun/store"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// Accounts registers and verifies users. *auth.Service satisfies it.
type Accounts interface {
	Register(ctx context.Context, username, password string) error
	Verify(ctx context.Context, username, password string) (bool, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
}

// Diaries stores diary entries. *diary.Service satisfies it.
type Diaries interface {
	Upsert(ctx context.Context, userID string, date time.Time, text string, mode diary.Mode) (diary.Entry, error)
	Get(ctx context.Context, userID string, date time.Time) (diary.Entry, bool, error)
	List(ctx context.Context, userID string) ([]diary.Entry, error)
}

// Chats answers chat messages. *chat.Service satisfies it.
type Chats interface {
	Reply(ctx context.Context, userID, displayName, text string) (chat.Reply, error)
	History(ctx context.Context, userID string) ([]memory.Turn, error)
}

// Profiles derives profiles and objectives. *profile.Service satisfies it.
type Profiles interface {
	Profile(ctx context.Context, userID string) (profile.Profile, error)
	Objectives(ctx context.Context, userID string) (profile.Objectives, error)
}

var (
	_ Accounts = (*auth.Service)(nil)
	_ Diaries  = (*diary.Service)(nil)
	_ Chats    = (*chat.Service)(nil)
	_ Profiles = (*profile.Service)(nil)
)

// Deps are the services behind the HTTP API.
type Deps struct {
	Accounts Accounts
	Diaries  Diaries
	Chats    Chats
	Profiles Profiles
	Status   statusProvider

	// GeneratorConfigured is reported by /status.
	GeneratorConfigured bool
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordRequest struct {
	NewPassword string `json:"new_password"`
}

type diaryRequest struct {
	Date string `json:"date"`
	Text string `json:"text"`
	Edit bool   `json:"edit"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type entryResponse struct {
	Date            string         `json:"date"`
	Text            string         `json:"text"`
	Emotions        emotion.Vector `json:"emotions"`
	DominantEmotion string         `json:"dominant_emotion"`
	LastModified    time.Time      `json:"last_modified"`
}

type chatResponse struct {
	Reply    string         `json:"reply"`
	Emotions emotion.Vector `json:"emotions"`
	TurnID   string         `json:"turn_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newEntryResponse(e diary.Entry) entryResponse {
	return entryResponse{
		Date:            e.DateString(),
		Text:            e.Text,
		Emotions:        e.Emotions,
		DominantEmotion: e.Emotions.Dominant(),
		LastModified:    e.LastModified,
	}
}

type userKey struct{}

func userFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/register", s.handleRegister)
	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.Handle("PUT /v1/password", s.requireUser(s.handleChangePassword))

	mux.Handle("GET /v1/diary", s.requireUser(s.handleListDiary))
	mux.Handle("GET /v1/diary/{date}", s.requireUser(s.handleGetDiary))
	mux.Handle("POST /v1/diary", s.requireUser(s.handlePostDiary))

	mux.Handle("GET /v1/chat/history", s.requireUser(s.handleChatHistory))
	mux.Handle("POST /v1/chat", s.requireUser(s.handleChat))

	mux.Handle("GET /v1/profile", s.requireUser(s.handleProfile))
	mux.Handle("GET /v1/objectives", s.requireUser(s.handleObjectives))
}

// requireUser checks HTTP Basic credentials and stores the normalized
// username in the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			unauthorized(w)
			return
		}
		valid, err := s.deps.Accounts.Verify(r.Context(), username, password)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !valid {
			unauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, auth.NormalizeUsername(username))
		next(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="kibun"`)
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Accounts.Register(r.Context(), req.Username, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	trace.Logger(r.Context()).Info("http: user registered", "username", auth.NormalizeUsername(req.Username))
	writeJSON(w, http.StatusCreated, map[string]string{"username": auth.NormalizeUsername(req.Username)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ok, err := s.deps.Accounts.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, auth.ErrInvalidCredentials)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": auth.NormalizeUsername(req.Username)})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	_, oldPassword, _ := r.BasicAuth()
	if err := s.deps.Accounts.ChangePassword(r.Context(), userFromContext(r.Context()), oldPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDiary(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Diaries.List(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDiary(w http.ResponseWriter, r *http.Request) {
	date, err := diary.ParseDate(r.PathValue("date"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: date must be YYYY-MM-DD", errBadRequest))
		return
	}
	e, ok, err := s.deps.Diaries.Get(r.Context(), userFromContext(r.Context()), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(e))
}

func (s *Server) handlePostDiary(w http.ResponseWriter, r *http.Request) {
	var req diaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var date time.Time
	if req.Date != "" {
		d, err := diary.ParseDate(req.Date)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: date must be YYYY-MM-DD", errBadRequest))
			return
		}
		date = d
	}
	mode := diary.ModeAppend
	if req.Edit {
		mode = diary.ModeReplace
	}
	e, err := s.deps.Diaries.Upsert(r.Context(), userFromContext(r.Context()), date, req.Text, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(e))
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.deps.Chats.History(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if turns == nil {
		turns = []memory.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user := userFromContext(r.Context())
	reply, err := s.deps.Chats.Reply(r.Context(), user, user, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Reply:    reply.Text,
		Emotions: reply.Emotions,
		TurnID:   reply.Turn.ID,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.Profile(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	o, err := s.deps.Profiles.Objectives(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// statusFor maps a service error to its HTTP status and client-facing
// message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, diary.ErrEmptyEntry),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, diary.ErrNoPriorEntry):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, profile.ErrInsufficientData):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, chat.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusBadGateway, "assistant unavailable, try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	logger := trace.Logger(r.Context())
	if code >= http.StatusInternalServerError {
		logger.Error("http: request failed", "method", r.Method, "path", r.URL.Path, "status", code, "err", err)
	} else {
		logger.Debug("http: request rejected", "method", r.Method, "path", r.URL.Path, "status", code, "err", err)
	}
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="kibun"`)
	}
	writeJSON(w, code, errorResponse{Error: msg})
}
