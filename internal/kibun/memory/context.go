package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Kibun/internal/kibun/emotion"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
	"github.com/bdobrica/Kibun/internal/kibun/prompts"
)

const (
	// DefaultWindow is the number of past turns included in the context.
	DefaultWindow = 10

	// DefaultMaxTokens is the estimated token budget for the windowed
	// history. The system preamble and the new message are never trimmed.
	DefaultMaxTokens = 6000
)

// Assembler builds the context for one chat turn.
//
// The result always has the shape
//
//	system, (user, assistant) x k, user
//
// with k <= Window, so it never holds more than 2*Window+2 messages. When
// the windowed history exceeds MaxTokens, whole turns are dropped oldest
// first. Persisted history is never modified.
type Assembler struct {
	Window    int
	MaxTokens int
	Prompts   *prompts.Registry // defaults to prompts.Default()
}

// Request carries everything needed to build one turn's context.
type Request struct {
	UserID         string
	UserName       string
	History        []Turn // oldest first
	Message        string
	Emotions       emotion.Vector // of Message
	ProfileSummary string
}

// Pending is a context awaiting the generator's reply.
type Pending struct {
	Context []llm.Message

	userID   string
	message  string
	emotions emotion.Vector
}

// Complete turns the generator's response into the Turn to persist.
func (p Pending) Complete(response string, at time.Time) Turn {
	return Turn{
		ID:           uuid.NewString(),
		UserID:       p.userID,
		Timestamp:    at.UTC(),
		HumanMessage: p.message,
		BotMessage:   response,
		Emotions:     p.emotions,
	}
}

// BuildTurn renders the system preamble and windows req.History.
func (a *Assembler) BuildTurn(req Request) (Pending, error) {
	window := a.Window
	if window <= 0 {
		window = DefaultWindow
	}
	maxTokens := a.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	reg := a.Prompts
	if reg == nil {
		reg = prompts.Default()
	}

	system, err := reg.Render(prompts.ChatSystem, prompts.ChatSystemData{
		UserName:        req.UserName,
		DominantEmotion: req.Emotions.Dominant(),
		ProfileSummary:  req.ProfileSummary,
	})
	if err != nil {
		return Pending{}, fmt.Errorf("memory: render system prompt: %w", err)
	}

	history := windowTurns(req.History, window)
	history = trimToTokenBudget(history, maxTokens)

	msgs := make([]llm.Message, 0, 2*len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, t := range history {
		msgs = append(msgs, t.messages()...)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Message})

	return Pending{
		Context:  msgs,
		userID:   req.UserID,
		message:  req.Message,
		emotions: req.Emotions,
	}, nil
}

// windowTurns returns the last n turns of history without copying.
func windowTurns(history []Turn, n int) []Turn {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

// trimToTokenBudget drops the oldest turns until the estimated token count
// fits budget. It may return an empty slice.
func trimToTokenBudget(turns []Turn, budget int) []Turn {
	total := 0
	for _, t := range turns {
		total += estimateTokens(t.messages())
	}
	for len(turns) > 0 && total > budget {
		total -= estimateTokens(turns[0].messages())
		turns = turns[1:]
	}
	return turns
}
