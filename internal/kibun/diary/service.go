package diary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/Kibun/internal/kibun/emotion"
)

// Mode selects what happens when the target day already has an entry.
type Mode int

const (
	// ModeAppend joins the new text to the existing entry with a newline.
	ModeAppend Mode = iota
	// ModeReplace overwrites the existing entry. The day must already have
	// an entry.
	ModeReplace
)

func (m Mode) String() string {
	if m == ModeReplace {
		return "replace"
	}
	return "append"
}

// Service applies the merge policy on top of a Repository.
//
// Upserts for the same (user, day) are serialized inside the service so the
// read-modify-write cycle is atomic for a single process. Deployments with
// several writers sharing one database need the same guarantee from the
// database itself.
type Service struct {
	repo   Repository
	tagger emotion.Tagger
	locks  *keyLock
	now    func() time.Time
}

// NewService returns a Service. A nil clock defaults to time.Now.
func NewService(repo Repository, tagger emotion.Tagger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, tagger: tagger, locks: newKeyLock(), now: now}
}

// Upsert stores text as the entry for (userID, date). A zero date means
// today. See Mode for the merge rules.
func (s *Service) Upsert(ctx context.Context, userID string, date time.Time, text string, mode Mode) (Entry, error) {
	if strings.TrimSpace(text) == "" {
		return Entry{}, ErrEmptyEntry
	}

	now := s.now()
	if date.IsZero() {
		date = now
	}
	day := Day(date)

	unlock := s.locks.lock(userID + "|" + day.Format(DateLayout))
	defer unlock()

	existing, found, err := s.repo.GetEntry(ctx, userID, day)
	if err != nil {
		return Entry{}, fmt.Errorf("diary: read entry: %w", err)
	}

	var merged string
	switch {
	case mode == ModeReplace && !found:
		return Entry{}, ErrNoPriorEntry
	case mode == ModeReplace || !found:
		merged = text
	default:
		merged = existing.Text + "\n" + text
	}

	entry := Entry{
		UserID:       userID,
		Date:         day,
		Text:         merged,
		Emotions:     emotion.TagOrZero(ctx, s.tagger, merged),
		LastModified: now.UTC(),
	}
	if err := s.repo.PutEntry(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("diary: write entry: %w", err)
	}

	slog.Debug("diary: entry stored",
		"user_id", userID,
		"date", entry.DateString(),
		"mode", mode.String(),
		"created", !found,
		"dominant", entry.Emotions.Dominant(),
	)
	return entry, nil
}

// Get returns the entry for (userID, date), reporting whether it exists.
func (s *Service) Get(ctx context.Context, userID string, date time.Time) (Entry, bool, error) {
	e, ok, err := s.repo.GetEntry(ctx, userID, Day(date))
	if err != nil {
		return Entry{}, false, fmt.Errorf("diary: read entry: %w", err)
	}
	return e, ok, nil
}

// List returns every entry of userID, oldest first.
func (s *Service) List(ctx context.Context, userID string) ([]Entry, error) {
	entries, err := s.repo.ListEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("diary: list entries: %w", err)
	}
	return entries, nil
}
