// Kibun is the emotional journaling assistant.
//
// Configuration is read from environment variables, optionally seeded from a
// .env file in the working directory.
//
//	KIBUN_DB_DRIVER          - "sqlite" (default) or "mysql"
//	KIBUN_DB_DSN             - SQLite path or MySQL DSN (default: ./kibun.db)
//	KIBUN_HTTP_ADDR          - API listen address (default ":8080", "" disables)
//	KIBUN_PROMPTS_FILE       - YAML file overriding prompt templates
//	KIBUN_TAGGER             - "lexicon" (default), "http" or "llm"
//	KIBUN_TAGGER_URL         - endpoint for the http tagger
//	KIBUN_TAGGER_API_KEY     - bearer token for the http tagger
//	KIBUN_LEXICON_FILE       - YAML file replacing the built-in lexicon
//	KIBUN_PROFILE_CACHE_TTL  - profile cache lifetime (default 30m)
//	KIBUN_CHAT_WINDOW        - past turns sent with each message (default 10)
//	KIBUN_CHAT_RATE_LIMIT    - messages per user per minute (default 20)
//	KIBUN_CHAT_MAX_TOKENS    - history token budget (default 6000)
//	KIBUN_MAX_REPLY_TOKENS   - reply length cap (default 800)
//	KIBUN_BCRYPT_COST        - password hashing cost (default bcrypt.DefaultCost)
//	LLM_API_KEY              - generator API key; chat is disabled without it
//	LLM_BASE_URL             - OpenAI-compatible API root (default Mistral)
//	LLM_MODEL                - model name
//	LLM_TIMEOUT              - per-attempt timeout (default 60s)
//	LLM_STRUCTURED_OUTPUT    - send JSON schemas as response_format (default true)
//	LLM_REQUESTS_PER_SECOND  - generator throttle (default 0, unthrottled)
//	LLM_BURST                - throttle burst (default 1)
//	MATRIX_HOMESERVER        - enables the Matrix gateway when set
//	MATRIX_USER_ID           - bot MXID
//	MATRIX_ACCESS_TOKEN      - bot access token
//	MATRIX_ROOMS             - comma-separated room IDs to listen in
//	LOG_LEVEL                - "debug", "info", "warn", "error" (default: "info")
//	LOG_FORMAT               - "text" or "json" (default: "text")
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bdobrica/Kibun/common/environment"
	"github.com/bdobrica/Kibun/common/logging"
	"github.com/bdobrica/Kibun/common/version"
	"github.com/bdobrica/Kibun/internal/kibun/app"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
	"github.com/bdobrica/Kibun/internal/kibun/matrix"
)

func main() {
	if err := environment.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(os.Stderr, environment.StringOr("LOG_LEVEL", "info"), environment.StringOr("LOG_FORMAT", "text"))

	fmt.Printf("Kibun\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	config := loadConfig()

	if config.Matrix.Homeserver != "" && (config.Matrix.UserID == "" || config.Matrix.AccessToken == "") {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_USER_ID and MATRIX_ACCESS_TOKEN are required with MATRIX_HOMESERVER\n")
		os.Exit(1)
	}

	kibun, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Kibun: %v\n", err)
		os.Exit(1)
	}
	defer kibun.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kibun.Run(ctx); err != nil {
		slog.Error("Kibun stopped", "err", err)
		kibun.Stop()
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables.
func loadConfig() app.Config {
	return app.Config{
		DatabaseDriver: environment.StringOr("KIBUN_DB_DRIVER", "sqlite"),
		DatabaseDSN:    environment.StringOr("KIBUN_DB_DSN", "./kibun.db"),
		HTTPAddr:       httpAddr(),
		PromptsFile:    environment.StringOr("KIBUN_PROMPTS_FILE", ""),
		Tagger:         environment.StringOr("KIBUN_TAGGER", app.TaggerLexicon),
		TaggerURL:      environment.StringOr("KIBUN_TAGGER_URL", ""),
		TaggerAPIKey:   environment.StringOr("KIBUN_TAGGER_API_KEY", ""),
		LexiconFile:    environment.StringOr("KIBUN_LEXICON_FILE", ""),
		LLM: llm.Config{
			APIKey:            environment.StringOr("LLM_API_KEY", ""),
			BaseURL:           environment.StringOr("LLM_BASE_URL", ""),
			Model:             environment.StringOr("LLM_MODEL", ""),
			Timeout:           environment.DurationOr("LLM_TIMEOUT", 60*time.Second),
			StructuredOutput:  environment.BoolOr("LLM_STRUCTURED_OUTPUT", true),
			RequestsPerSecond: environment.FloatOr("LLM_REQUESTS_PER_SECOND", 0),
			Burst:             environment.IntOr("LLM_BURST", 1),
		},
		ProfileCacheTTL:      environment.DurationOr("KIBUN_PROFILE_CACHE_TTL", 30*time.Minute),
		ChatWindow:           environment.IntOr("KIBUN_CHAT_WINDOW", 10),
		ChatRateLimit:        environment.IntOr("KIBUN_CHAT_RATE_LIMIT", 20),
		ChatMaxContextTokens: environment.IntOr("KIBUN_CHAT_MAX_TOKENS", 6000),
		MaxReplyTokens:       environment.IntOr("KIBUN_MAX_REPLY_TOKENS", 800),
		BcryptCost:           environment.IntOr("KIBUN_BCRYPT_COST", 0),
		Matrix: matrix.Config{
			Homeserver:  environment.StringOr("MATRIX_HOMESERVER", ""),
			UserID:      environment.StringOr("MATRIX_USER_ID", ""),
			AccessToken: environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
			Rooms:       environment.StringSliceOr("MATRIX_ROOMS", nil),
		},
	}
}

// httpAddr distinguishes an unset KIBUN_HTTP_ADDR (default port) from one
// set to the empty string (API disabled).
func httpAddr() string {
	if v, ok := os.LookupEnv("KIBUN_HTTP_ADDR"); ok {
		return strings.TrimSpace(v)
	}
	return ":8080"
}
