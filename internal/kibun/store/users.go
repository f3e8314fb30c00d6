package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateUser inserts a new account. A taken username yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, username, passwordHash, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("failed to create user %q: %w", username, ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// PasswordHash returns the stored hash for username, or ErrNotFound.
func (s *Store) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT password_hash FROM users WHERE username = ?
	`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return hash, nil
}

// SetPasswordHash replaces the hash for username, or returns ErrNotFound.
func (s *Store) SetPasswordHash(ctx context.Context, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE username = ?
	`, passwordHash, formatTime(time.Now()), username)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
