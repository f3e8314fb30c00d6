package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveSyncValue upserts one Matrix sync state value for the bot userID.
func (s *Store) SaveSyncValue(ctx context.Context, userID, key, value string) error {
	query := `INSERT INTO matrix_sync_state (user_id, state_key, value) VALUES (?, ?, ?) `
	if s.dialect == MySQL {
		query += `ON DUPLICATE KEY UPDATE value = VALUES(value)`
	} else {
		query += `ON CONFLICT(user_id, state_key) DO UPDATE SET value = excluded.value`
	}
	if _, err := s.db.ExecContext(ctx, query, userID, key, value); err != nil {
		return fmt.Errorf("failed to save sync state %s: %w", key, err)
	}
	return nil
}

// LoadSyncValue returns a stored sync state value, or "" when unset.
func (s *Store) LoadSyncValue(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM matrix_sync_state WHERE user_id = ? AND state_key = ?
	`, userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load sync state %s: %w", key, err)
	}
	return value, nil
}
