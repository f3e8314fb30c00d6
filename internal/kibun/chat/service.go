// Package chat runs one conversational turn: tag the message, window the
// recent history, ask the generator for a reply and persist the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bdobrica/Kibun/common/trace"
	"github.com/bdobrica/Kibun/internal/kibun/emotion"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
	"github.com/bdobrica/Kibun/internal/kibun/memory"
	"github.com/bdobrica/Kibun/internal/kibun/profile"
	"github.com/bdobrica/Kibun/internal/kibun/prompts"
)

var (
	// ErrEmptyMessage rejects a message with no non-whitespace content.
	ErrEmptyMessage = errors.New("chat: message is empty")

	// ErrRateLimited means the user sent too many messages recently.
	ErrRateLimited = errors.New("chat: too many messages, slow down")
)

const (
	noHistorySummary   = "no diary history yet"
	unavailableSummary = "profile unavailable right now"

	defaultMaxReplyTokens = 800
)

// Log persists chat turns.
type Log interface {
	AppendTurn(ctx context.Context, t memory.Turn) error
	RecentTurns(ctx context.Context, userID string, limit int) ([]memory.Turn, error)
}

// ProfileSource supplies the profile summarised in the system preamble.
// *profile.Service satisfies it.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (profile.Profile, error)
}

// Config tunes a Service.
type Config struct {
	// Window is the number of past turns sent with each message.
	// Defaults to memory.DefaultWindow.
	Window int

	// MaxContextTokens bounds the windowed history. Defaults to
	// memory.DefaultMaxTokens.
	MaxContextTokens int

	// MaxReplyTokens caps each generated reply. Defaults to 800.
	MaxReplyTokens int

	// RateLimit and RateWindow bound messages per user.
	// Default: 20 per minute.
	RateLimit  int
	RateWindow time.Duration

	Prompts *prompts.Registry
	Now     func() time.Time
}

// Service answers chat messages. Profiles may be nil.
type Service struct {
	log       Log
	tagger    emotion.Tagger
	gen       llm.Generator
	profiles  ProfileSource
	assembler *memory.Assembler
	limiter   *RateLimiter
	window    int
	maxReply  int
	now       func() time.Time
}

// Reply is the outcome of one turn.
type Reply struct {
	Text     string         `json:"reply"`
	Emotions emotion.Vector `json:"emotions"`
	Turn     memory.Turn    `json:"turn"`
}

// NewService wires a Service.
func NewService(log Log, tagger emotion.Tagger, gen llm.Generator, profiles ProfileSource, cfg Config) *Service {
	if cfg.Window <= 0 {
		cfg.Window = memory.DefaultWindow
	}
	if cfg.MaxReplyTokens <= 0 {
		cfg.MaxReplyTokens = defaultMaxReplyTokens
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		log:      log,
		tagger:   tagger,
		gen:      gen,
		profiles: profiles,
		assembler: &memory.Assembler{
			Window:    cfg.Window,
			MaxTokens: cfg.MaxContextTokens,
			Prompts:   cfg.Prompts,
		},
		limiter:  NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		window:   cfg.Window,
		maxReply: cfg.MaxReplyTokens,
		now:      cfg.Now,
	}
}

// Reply answers text from userID. displayName is used in the preamble and
// falls back to userID. A generator failure wraps llm.ErrUnavailable and
// nothing is persisted. Only completed turns count against the rate limit.
func (s *Service) Reply(ctx context.Context, userID, displayName, text string) (reply Reply, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	if !s.limiter.Allow(userID) {
		return Reply{}, ErrRateLimited
	}
	defer func() {
		if err != nil {
			s.limiter.Release(userID)
		}
	}()
	if displayName == "" {
		displayName = userID
	}
	logger := trace.Logger(ctx)

	vec := emotion.TagOrZero(ctx, s.tagger, text)

	history, err := s.log.RecentTurns(ctx, userID, s.window)
	if err != nil {
		return Reply{}, fmt.Errorf("chat: load history: %w", err)
	}

	pending, err := s.assembler.BuildTurn(memory.Request{
		UserID:         userID,
		UserName:       displayName,
		History:        history,
		Message:        text,
		Emotions:       vec,
		ProfileSummary: s.profileSummary(ctx, userID),
	})
	if err != nil {
		return Reply{}, err
	}

	response, err := s.gen.Generate(ctx, pending.Context, llm.WithMaxTokens(s.maxReply))
	if err != nil {
		if !errors.Is(err, llm.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
		}
		logger.Warn("chat: generation failed", "err", err, "user_id", userID)
		return Reply{}, err
	}

	turn := pending.Complete(response, s.now())
	if err := s.log.AppendTurn(ctx, turn); err != nil {
		return Reply{}, fmt.Errorf("chat: append turn: %w", err)
	}

	logger.Debug("chat: turn complete",
		"user_id", userID,
		"turn_id", turn.ID,
		"history", len(history),
		"dominant", vec.Dominant(),
	)
	return Reply{Text: response, Emotions: vec, Turn: turn}, nil
}

// History returns the turns that would be windowed into the next reply,
// oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]memory.Turn, error) {
	turns, err := s.log.RecentTurns(ctx, userID, s.window)
	if err != nil {
		return nil, fmt.Errorf("chat: load history: %w", err)
	}
	return turns, nil
}

// Remaining reports how many messages userID may still send in the
// current rate-limit window.
func (s *Service) Remaining(userID string) int {
	return s.limiter.Remaining(userID)
}

func (s *Service) profileSummary(ctx context.Context, userID string) string {
	if s.profiles == nil {
		return noHistorySummary
	}
	p, err := s.profiles.Profile(ctx, userID)
	switch {
	case errors.Is(err, profile.ErrInsufficientData):
		return noHistorySummary
	case err != nil:
		trace.Logger(ctx).Warn("chat: profile unavailable", "err", err, "user_id", userID)
		return unavailableSummary
	}
	return p.Summary()
}
