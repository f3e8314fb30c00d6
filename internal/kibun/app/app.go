// Package app wires the Kibun services together and runs the HTTP API and
// the optional Matrix gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bdobrica/Kibun/common/version"
	"github.com/bdobrica/Kibun/internal/kibun/auth"
	"github.com/bdobrica/Kibun/internal/kibun/chat"
	"github.com/bdobrica/Kibun/internal/kibun/diary"
	"github.com/bdobrica/Kibun/internal/kibun/emotion"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
	"github.com/bdobrica/Kibun/internal/kibun/matrix"
	"github.com/bdobrica/Kibun/internal/kibun/profile"
	"github.com/bdobrica/Kibun/internal/kibun/prompts"
	"github.com/bdobrica/Kibun/internal/kibun/store"
)

// Tagger selections for Config.Tagger.
const (
	TaggerLexicon = "lexicon"
	TaggerHTTP    = "http"
	TaggerLLM     = "llm"
)

// Config holds application configuration.
type Config struct {
	DatabaseDriver string // "sqlite" (default) or "mysql"
	DatabaseDSN    string

	// HTTPAddr is the listen address of the API (e.g. ":8080"). When empty
	// the HTTP server is disabled.
	HTTPAddr string

	// PromptsFile optionally overrides the embedded prompt templates.
	PromptsFile string

	// Tagger selects the emotion tagger: lexicon (default), http or llm.
	Tagger       string
	TaggerURL    string
	TaggerAPIKey string
	// LexiconFile optionally replaces the embedded lexicon.
	LexiconFile string

	// LLM configures the text generator. Without an API key chat replies
	// fail with llm.ErrUnavailable and profiles skip classification.
	LLM llm.Config

	ProfileCacheTTL      time.Duration
	ChatWindow           int
	ChatRateLimit        int
	ChatMaxContextTokens int
	MaxReplyTokens       int
	BcryptCost           int

	// Matrix is used when Homeserver is set.
	Matrix matrix.Config
}

// App is the main application.
type App struct {
	config  Config
	store   *store.Store
	server  *Server
	matrix  *matrix.Client
	gateway *Gateway
}

// New opens the store and wires every service.
func New(config Config) (*App, error) {
	if config.HTTPAddr == "" && config.Matrix.Homeserver == "" {
		return nil, errors.New("app: neither HTTP nor Matrix is configured")
	}

	driver := store.Dialect(strings.ToLower(config.DatabaseDriver))
	if driver == "" {
		driver = store.SQLite
	}
	db, err := store.Open(driver, config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	reg, err := prompts.LoadFile(config.PromptsFile)
	if err != nil {
		db.Close()
		return nil, err
	}

	var (
		profileGen llm.Generator
		chatGen    llm.Generator
	)
	if config.LLM.APIKey != "" {
		gen := llm.NewOpenAI(config.LLM)
		profileGen, chatGen = gen, gen
		slog.Info("llm generator configured", "base_url", config.LLM.BaseURL, "model", config.LLM.Model)
	} else {
		slog.Warn("no LLM API key configured; chat replies are disabled and profiles skip classification")
		chatGen = llm.GeneratorFunc(func(context.Context, []llm.Message, ...llm.Option) (string, error) {
			return "", fmt.Errorf("%w: no generator configured", llm.ErrUnavailable)
		})
	}

	tagger, err := newTagger(config, profileGen, reg)
	if err != nil {
		db.Close()
		return nil, err
	}

	diaries := diary.NewService(db, tagger, nil)
	profiles := profile.NewService(diaries, profileGen, reg, profile.Config{CacheTTL: config.ProfileCacheTTL})
	chats := chat.NewService(db, tagger, chatGen, profiles, chat.Config{
		Window:           config.ChatWindow,
		MaxContextTokens: config.ChatMaxContextTokens,
		MaxReplyTokens:   config.MaxReplyTokens,
		RateLimit:        config.ChatRateLimit,
		Prompts:          reg,
	})
	accounts := auth.NewService(db, config.BcryptCost)

	a := &App{config: config, store: db}

	if config.HTTPAddr != "" {
		a.server = NewServer(config.HTTPAddr, Deps{
			Accounts:            accounts,
			Diaries:             diaries,
			Chats:               chats,
			Profiles:            profiles,
			Status:              db,
			GeneratorConfigured: profileGen != nil,
		})
	}

	if config.Matrix.Homeserver != "" {
		mcfg := config.Matrix
		mcfg.SyncState = db
		client, err := matrix.New(mcfg)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.matrix = client
		a.gateway = NewGateway(client, diaries, chats, profiles)
	}

	return a, nil
}

func newTagger(config Config, gen llm.Generator, reg *prompts.Registry) (emotion.Tagger, error) {
	switch strings.ToLower(config.Tagger) {
	case "", TaggerLexicon:
		if config.LexiconFile == "" {
			return emotion.DefaultLexicon(), nil
		}
		data, err := os.ReadFile(config.LexiconFile)
		if err != nil {
			return nil, fmt.Errorf("app: read lexicon: %w", err)
		}
		lex, err := emotion.ParseLexicon(data)
		if err != nil {
			return nil, fmt.Errorf("app: %s: %w", config.LexiconFile, err)
		}
		return lex, nil
	case TaggerHTTP:
		if config.TaggerURL == "" {
			return nil, errors.New("app: http tagger requires a URL")
		}
		return emotion.NewHTTPTagger(emotion.HTTPTaggerConfig{
			URL:    config.TaggerURL,
			APIKey: config.TaggerAPIKey,
		}), nil
	case TaggerLLM:
		if gen == nil {
			return nil, errors.New("app: llm tagger requires an LLM API key")
		}
		return &llm.EmotionTagger{Generator: gen, Prompt: reg.Text(prompts.EmotionTagging)}, nil
	default:
		return nil, fmt.Errorf("app: unknown tagger %q", config.Tagger)
	}
}

// Run starts the HTTP server and Matrix sync, then blocks until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Start(ctx); err != nil {
			return err
		}
	}

	if a.matrix != nil {
		slog.Info("starting Matrix sync")
		if err := a.matrix.Start(ctx, a.gateway.HandleMessage); err != nil {
			return fmt.Errorf("failed to start Matrix client: %w", err)
		}
	}

	slog.Info("Kibun is running", "version", version.Info())
	<-ctx.Done()
	slog.Info("shutdown requested")
	return nil
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	if a.matrix != nil {
		slog.Info("stopping Matrix client")
		a.matrix.Stop()
	}
	if a.server != nil {
		slog.Info("stopping HTTP server")
		a.server.Stop()
	}
	slog.Info("closing database")
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close database", "err", err)
	}
}
