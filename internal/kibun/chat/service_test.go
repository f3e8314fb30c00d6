package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/Kibun/internal/kibun/emotion"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
	"github.com/bdobrica/Kibun/internal/kibun/memory"
	"github.com/bdobrica/Kibun/internal/kibun/profile"
)

// echoGenerator replies with a counter and remembers the last context.
type echoGenerator struct {
	mu   sync.Mutex
	n    int
	last []llm.Message
	opts llm.CallOptions
	err  error
}

func (g *echoGenerator) Generate(_ context.Context, msgs []llm.Message, opts ...llm.Option) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = msgs
	g.opts = llm.ApplyOptions(opts)
	if g.err != nil {
		return "", g.err
	}
	g.n++
	return fmt.Sprintf("reply %d", g.n), nil
}

type stubProfiles struct {
	p   profile.Profile
	err error
}

func (s stubProfiles) Profile(context.Context, string) (profile.Profile, error) { return s.p, s.err }

type failingLog struct{ memory.Tracker }

func (*failingLog) AppendTurn(context.Context, memory.Turn) error { return errors.New("disk full") }

var fixedNow = time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

func newTestService(log Log, gen llm.Generator, profiles ProfileSource, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return fixedNow }
	}
	tagger := emotion.TaggerFunc(func(_ context.Context, text string) (emotion.Vector, error) {
		if strings.Contains(text, "great") {
			return emotion.Vector{Joy: 0.9}, nil
		}
		return emotion.Vector{}, nil
	})
	return NewService(log, tagger, gen, profiles, cfg)
}

func TestService_Reply(t *testing.T) {
	ctx := context.Background()
	log := memory.NewTracker(0)
	gen := &echoGenerator{}
	profiles := stubProfiles{p: profile.Profile{DominantEmotion: "Joy", Tendency: "Tendency toward happiness"}}
	svc := newTestService(log, gen, profiles, Config{})

	r, err := svc.Reply(ctx, "@ana:example.org", "Ana", "  what a great day  ")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if r.Text != "reply 1" || r.Emotions.Joy != 0.9 {
		t.Errorf("reply: %+v", r)
	}
	if r.Turn.HumanMessage != "what a great day" || !r.Turn.Timestamp.Equal(fixedNow) {
		t.Errorf("turn: %+v", r.Turn)
	}
	if gen.opts.MaxTokens != defaultMaxReplyTokens {
		t.Errorf("max tokens: got %d", gen.opts.MaxTokens)
	}
	sys := gen.last[0].Content
	if !strings.Contains(sys, "Ana") || !strings.Contains(sys, "Tendency toward happiness") {
		t.Errorf("system prompt: %s", sys)
	}

	if _, err := svc.Reply(ctx, "@ana:example.org", "Ana", "and now?"); err != nil {
		t.Fatalf("second Reply: %v", err)
	}
	if len(gen.last) != 4 || gen.last[1].Content != "what a great day" || gen.last[2].Content != "reply 1" {
		t.Errorf("second context: %+v", gen.last)
	}

	hist, err := svc.History(ctx, "@ana:example.org")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[1].BotMessage != "reply 2" {
		t.Errorf("history: %+v", hist)
	}
}

func TestService_Reply_WindowBound(t *testing.T) {
	ctx := context.Background()
	gen := &echoGenerator{}
	svc := newTestService(memory.NewTracker(0), gen, nil, Config{Window: 3, RateLimit: 100})

	for i := 0; i < 8; i++ {
		if _, err := svc.Reply(ctx, "ana", "", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("Reply %d: %v", i, err)
		}
		if len(gen.last) > 2*3+2 {
			t.Fatalf("context has %d messages", len(gen.last))
		}
	}
	hist, _ := svc.History(ctx, "ana")
	if len(hist) != 3 || hist[0].HumanMessage != "msg 5" {
		t.Errorf("history: %+v", hist)
	}
}

func TestService_Reply_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty message", func(t *testing.T) {
		svc := newTestService(memory.NewTracker(0), &echoGenerator{}, nil, Config{})
		if _, err := svc.Reply(ctx, "ana", "", " \n\t"); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("got %v, want ErrEmptyMessage", err)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		svc := newTestService(memory.NewTracker(0), &echoGenerator{}, nil, Config{RateLimit: 2})
		for i := 0; i < 2; i++ {
			if _, err := svc.Reply(ctx, "ana", "", "hi"); err != nil {
				t.Fatalf("Reply: %v", err)
			}
		}
		if _, err := svc.Reply(ctx, "ana", "", "hi"); !errors.Is(err, ErrRateLimited) {
			t.Errorf("got %v, want ErrRateLimited", err)
		}
		if svc.Remaining("ana") != 0 {
			t.Errorf("Remaining: got %d", svc.Remaining("ana"))
		}
	})

	t.Run("failed turns keep their quota", func(t *testing.T) {
		gen := &echoGenerator{err: errors.New("connection refused")}
		svc := newTestService(memory.NewTracker(0), gen, nil, Config{RateLimit: 3})
		for i := 0; i < 5; i++ {
			if _, err := svc.Reply(ctx, "ana", "", "hi"); !errors.Is(err, llm.ErrUnavailable) {
				t.Fatalf("attempt %d: got %v, want ErrUnavailable", i, err)
			}
		}
		if got := svc.Remaining("ana"); got != 3 {
			t.Errorf("Remaining: got %d, want 3", got)
		}
		gen.mu.Lock()
		gen.err = nil
		gen.mu.Unlock()
		if _, err := svc.Reply(ctx, "ana", "", "hi"); err != nil {
			t.Fatalf("Reply after recovery: %v", err)
		}
		if got := svc.Remaining("ana"); got != 2 {
			t.Errorf("Remaining after success: got %d, want 2", got)
		}
	})

	t.Run("generator unavailable", func(t *testing.T) {
		log := memory.NewTracker(0)
		svc := newTestService(log, &echoGenerator{err: errors.New("connection refused")}, nil, Config{})
		_, err := svc.Reply(ctx, "ana", "", "hi")
		if !errors.Is(err, llm.ErrUnavailable) {
			t.Fatalf("got %v, want ErrUnavailable", err)
		}
		if hist, _ := log.RecentTurns(ctx, "ana", 0); len(hist) != 0 {
			t.Errorf("turn persisted after failure: %+v", hist)
		}
	})

	t.Run("append fails", func(t *testing.T) {
		svc := newTestService(&failingLog{}, &echoGenerator{}, nil, Config{})
		if _, err := svc.Reply(ctx, "ana", "", "hi"); err == nil || !strings.Contains(err.Error(), "disk full") {
			t.Errorf("got %v", err)
		}
	})
}

func TestService_ProfileSummary(t *testing.T) {
	tests := []struct {
		name     string
		profiles ProfileSource
		want     string
	}{
		{name: "no profile source", profiles: nil, want: noHistorySummary},
		{name: "insufficient data", profiles: stubProfiles{err: profile.ErrInsufficientData}, want: noHistorySummary},
		{name: "profile error", profiles: stubProfiles{err: errors.New("db down")}, want: unavailableSummary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &echoGenerator{}
			svc := newTestService(memory.NewTracker(0), gen, tt.profiles, Config{})
			if _, err := svc.Reply(context.Background(), "ana", "Ana", "hi"); err != nil {
				t.Fatalf("Reply: %v", err)
			}
			if !strings.Contains(gen.last[0].Content, tt.want) {
				t.Errorf("system prompt lacks %q:\n%s", tt.want, gen.last[0].Content)
			}
		})
	}
}
