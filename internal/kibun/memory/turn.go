// Package memory assembles the conversational context sent to the
// generation backend: one system preamble, a sliding window of recent chat
// turns, and the new user message.
package memory

import (
	"time"

	"github.com/bdobrica/Kibun/internal/kibun/emotion"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
)

// Turn is one persisted exchange: a human message and the bot's reply.
// Turns are append-only and ordered by Timestamp.
type Turn struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Timestamp    time.Time      `json:"timestamp"`
	HumanMessage string         `json:"human_message"`
	BotMessage   string         `json:"bot_message"`
	Emotions     emotion.Vector `json:"emotions"` // of HumanMessage
}

// messages expands t into its user and assistant messages.
func (t Turn) messages() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleUser, Content: t.HumanMessage},
		{Role: llm.RoleAssistant, Content: t.BotMessage},
	}
}

// estimateTokens returns a rough token count for msgs: about four
// characters per token plus a small per-message overhead for role framing.
func estimateTokens(msgs []llm.Message) int {
	const charsPerToken = 4
	const perMessageOverhead = 4

	total := 0
	for _, m := range msgs {
		total += len(m.Content)/charsPerToken + perMessageOverhead
	}
	return total
}
