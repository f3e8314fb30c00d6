package memory

import (
	"context"
	"sync"
)

// DefaultMaxTurns is the default per-user capacity of a Tracker.
const DefaultMaxTurns = 200

// Tracker is an in-process chat log. It keeps the most recent MaxTurns
// turns per user and drops older ones. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	maxTurns int
	turns    map[string][]Turn
}

// NewTracker returns a Tracker keeping at most maxTurns per user. A
// non-positive maxTurns selects DefaultMaxTurns.
func NewTracker(maxTurns int) *Tracker {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Tracker{maxTurns: maxTurns, turns: make(map[string][]Turn)}
}

// AppendTurn records t for t.UserID.
func (t *Tracker) AppendTurn(_ context.Context, turn Turn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := append(t.turns[turn.UserID], turn)
	if len(buf) > t.maxTurns {
		buf = append([]Turn(nil), buf[len(buf)-t.maxTurns:]...)
	}
	t.turns[turn.UserID] = buf
	return nil
}

// RecentTurns returns up to limit of userID's latest turns, oldest first.
// A non-positive limit returns every retained turn.
func (t *Tracker) RecentTurns(_ context.Context, userID string, limit int) ([]Turn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := t.turns[userID]
	if limit > 0 && len(buf) > limit {
		buf = buf[len(buf)-limit:]
	}
	return append([]Turn(nil), buf...), nil
}
