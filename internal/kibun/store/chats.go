package store

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/bdobrica/Kibun/internal/kibun/chat"
	"github.com/bdobrica/Kibun/internal/kibun/memory"
)

var _ chat.Log = (*Store)(nil)

// AppendTurn stores one chat turn. Insertion order defines history order.
func (s *Store) AppendTurn(ctx context.Context, t memory.Turn) error {
	v := t.Emotions
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_turns (id, user_id, created_at, human_message, bot_message,
		                        joy, anger, surprise, sadness, fear)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, formatTime(t.Timestamp), t.HumanMessage, t.BotMessage,
		v.Joy, v.Anger, v.Surprise, v.Sadness, v.Fear)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("failed to append chat turn %s: %w", t.ID, ErrConflict)
		}
		return fmt.Errorf("failed to append chat turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit of userID's latest turns, oldest first.
// A non-positive limit returns the full history.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]memory.Turn, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, created_at, human_message, bot_message,
		       joy, anger, surprise, sadness, fear
		FROM chat_turns
		WHERE user_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat turns: %w", err)
	}
	defer rows.Close()

	var turns []memory.Turn
	for rows.Next() {
		var (
			t       memory.Turn
			created string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &created, &t.HumanMessage, &t.BotMessage,
			&t.Emotions.Joy, &t.Emotions.Anger, &t.Emotions.Surprise, &t.Emotions.Sadness, &t.Emotions.Fear,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn: %w", err)
		}
		if t.Timestamp, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("bad created_at %q: %w", created, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list chat turns: %w", err)
	}
	slices.Reverse(turns)
	return turns, nil
}
