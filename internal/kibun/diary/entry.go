// Package diary implements the per-day diary entry merge policy.
//
// A user has at most one entry per calendar day. Submitting text for a day
// that already has an entry either appends to it (the default) or replaces
// it (an explicit edit). Either way the emotion vector is recomputed over
// the full resulting text, not merged from the parts.
package diary

import (
	"context"
	"errors"
	"time"

	"github.com/bdobrica/Kibun/internal/kibun/emotion"
)

// DateLayout is the canonical textual form of an entry date.
const DateLayout = time.DateOnly

var (
	// ErrEmptyEntry rejects a submission with no non-whitespace content.
	ErrEmptyEntry = errors.New("diary: entry text is empty")

	// ErrNoPriorEntry rejects an edit of a day that has no entry.
	ErrNoPriorEntry = errors.New("diary: no entry exists for that date")
)

// Entry is one user's diary for one calendar day.
type Entry struct {
	UserID       string         `json:"user_id"`
	Date         time.Time      `json:"-"`
	Text         string         `json:"text"`
	Emotions     emotion.Vector `json:"emotions"`
	LastModified time.Time      `json:"last_modified"`
}

// DateString returns Date formatted with DateLayout.
func (e Entry) DateString() string {
	return e.Date.Format(DateLayout)
}

// Day truncates t to midnight UTC of its calendar day, keeping the date as
// seen in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a DateLayout string into a Day value.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// Repository persists entries. Put must be a single-row upsert keyed by
// (UserID, Date). List returns a user's entries ordered by date ascending.
type Repository interface {
	GetEntry(ctx context.Context, userID string, date time.Time) (Entry, bool, error)
	PutEntry(ctx context.Context, e Entry) error
	ListEntries(ctx context.Context, userID string) ([]Entry, error)
}
