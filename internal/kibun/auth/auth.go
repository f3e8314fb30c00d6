// Package auth manages username/password accounts with bcrypt hashes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/bdobrica/Kibun/internal/kibun/store"
)

var (
	// ErrUserExists is returned by Register for a taken username.
	ErrUserExists = errors.New("auth: username already taken")

	// ErrInvalidCredentials is returned when a username/password pair does
	// not verify.
	ErrInvalidCredentials = errors.New("auth: invalid username or password")

	// ErrInvalidUsername and ErrWeakPassword reject malformed registrations.
	ErrInvalidUsername = errors.New("auth: username must be 3 to 64 characters")
	ErrWeakPassword    = errors.New("auth: password must be at least 8 characters")
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes; longer passwords are refused
	// rather than silently truncated.
	maxPasswordBytes = 72
)

// UserStore persists password hashes. *store.Store satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) error
	PasswordHash(ctx context.Context, username string) (string, error)
	SetPasswordHash(ctx context.Context, username, passwordHash string) error
}

var _ UserStore = (*store.Store)(nil)

// Service registers and verifies accounts.
type Service struct {
	users UserStore
	cost  int
}

// NewService returns a Service hashing with cost. A cost outside bcrypt's
// range selects bcrypt.DefaultCost.
func NewService(users UserStore, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, cost: cost}
}

// NormalizeUsername trims surrounding whitespace.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = NormalizeUsername(username)
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return ErrInvalidUsername
	}
	if err := checkPassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.users.CreateUser(ctx, username, string(hash)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrUserExists
		}
		return fmt.Errorf("auth: register: %w", err)
	}
	return nil
}

// Verify reports whether password matches username. An unknown user or a
// mismatch is (false, nil); only storage failures are errors.
func (s *Service) Verify(ctx context.Context, username, password string) (bool, error) {
	hash, err := s.users.PasswordHash(ctx, NormalizeUsername(username))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: verify: %w", err)
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("auth: verify: %w", err)
	}
}

// ChangePassword replaces the password after verifying the old one.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	ok, err := s.Verify(ctx, username, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.users.SetPasswordHash(ctx, NormalizeUsername(username), string(hash)); err != nil {
		return fmt.Errorf("auth: change password: %w", err)
	}
	return nil
}

func checkPassword(p string) error {
	if utf8.RuneCountInString(p) < minPasswordLen || len(p) > maxPasswordBytes {
		return ErrWeakPassword
	}
	return nil
}
