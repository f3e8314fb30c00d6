// Package retry runs collaborator calls with exponential backoff.
//
// Usage:
//
//	body, err := retry.Value(ctx, retry.DefaultConfig, func(ctx context.Context) ([]byte, error) {
//	    return fetch(ctx)
//	})
//
// Returning retry.Permanent(err) from the callback stops retrying at once.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Config controls the retry behaviour.
type Config struct {
	// MaxAttempts is the total number of attempts including the first.
	// Zero or negative means a single attempt.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt. Each later wait
	// doubles, capped at MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig suits short network calls to the tagging and generation
// services.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Value and Do return the wrapped
// error unchanged (errors.Is still sees through it).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do is Value for callbacks without a result.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value calls fn until it succeeds, returns a permanent error, the attempts
// run out, or ctx is done. The last error is returned, joined with the
// context error when the context ended the loop.
func Value[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}

	var zero T
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, errors.Join(lastErr, err)
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		var p *permanentError
		if errors.As(err, &p) {
			return zero, p.err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		slog.Debug("retry: attempt failed, retrying",
			"attempt", attempt, "max", cfg.MaxAttempts,
			"err", err, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, lastErr
}
