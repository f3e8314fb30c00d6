package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bdobrica/Kibun/internal/kibun/diary"
)

var _ diary.Repository = (*Store)(nil)

const diaryColumns = `user_id, entry_date, text, joy, anger, surprise, sadness, fear, last_modified`

// GetEntry returns the entry of userID for date, if any.
func (s *Store) GetEntry(ctx context.Context, userID string, date time.Time) (diary.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+diaryColumns+`
		FROM diary_entries
		WHERE user_id = ? AND entry_date = ?
	`, userID, diary.Day(date).Format(diary.DateLayout))

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return diary.Entry{}, false, nil
	}
	if err != nil {
		return diary.Entry{}, false, fmt.Errorf("failed to get diary entry: %w", err)
	}
	return e, true, nil
}

// PutEntry inserts or overwrites the entry for (e.UserID, e.Date) in one
// statement.
func (s *Store) PutEntry(ctx context.Context, e diary.Entry) error {
	query := `
		INSERT INTO diary_entries (` + diaryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	switch s.dialect {
	case MySQL:
		query += `
		ON DUPLICATE KEY UPDATE
			text = VALUES(text), joy = VALUES(joy), anger = VALUES(anger),
			surprise = VALUES(surprise), sadness = VALUES(sadness), fear = VALUES(fear),
			last_modified = VALUES(last_modified)`
	default:
		query += `
		ON CONFLICT(user_id, entry_date) DO UPDATE SET
			text = excluded.text, joy = excluded.joy, anger = excluded.anger,
			surprise = excluded.surprise, sadness = excluded.sadness, fear = excluded.fear,
			last_modified = excluded.last_modified`
	}

	v := e.Emotions
	_, err := s.db.ExecContext(ctx, query,
		e.UserID, diary.Day(e.Date).Format(diary.DateLayout), e.Text,
		v.Joy, v.Anger, v.Surprise, v.Sadness, v.Fear,
		formatTime(e.LastModified),
	)
	if err != nil {
		return fmt.Errorf("failed to put diary entry: %w", err)
	}
	return nil
}

// ListEntries returns every entry of userID, oldest first.
func (s *Store) ListEntries(ctx context.Context, userID string) ([]diary.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+diaryColumns+`
		FROM diary_entries
		WHERE user_id = ?
		ORDER BY entry_date ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary entries: %w", err)
	}
	defer rows.Close()

	var entries []diary.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diary entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (diary.Entry, error) {
	var (
		e            diary.Entry
		date, edited string
	)
	err := row.Scan(&e.UserID, &date, &e.Text,
		&e.Emotions.Joy, &e.Emotions.Anger, &e.Emotions.Surprise, &e.Emotions.Sadness, &e.Emotions.Fear,
		&edited)
	if err != nil {
		return diary.Entry{}, err
	}
	if e.Date, err = diary.ParseDate(date); err != nil {
		return diary.Entry{}, fmt.Errorf("bad entry_date %q: %w", date, err)
	}
	if e.LastModified, err = parseTime(edited); err != nil {
		return diary.Entry{}, fmt.Errorf("bad last_modified %q: %w", edited, err)
	}
	return e, nil
}
