package chat

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the number of chat messages a user may send per
	// window when no explicit limit is configured.
	DefaultRateLimit = 20

	defaultRateLimitWindow = time.Minute
)

// RateLimiter enforces a per-user sliding-window limit on chat messages.
//
// It keeps the timestamps of each user's calls inside the current window
// and prunes stale ones on every Allow, so memory stays bounded to
// O(limit) per active user. Safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	counters map[string][]time.Time
}

// NewRateLimiter allows at most limit calls per user within window.
// Non-positive values select DefaultRateLimit and one minute.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string][]time.Time),
	}
}

// Allow records a call for userID and reports whether it is within quota.
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	valid := r.prune(userID, now)
	if len(valid) >= r.limit {
		r.counters[userID] = valid
		return false
	}
	r.counters[userID] = append(valid, now)
	return true
}

// Release returns the most recent call recorded for userID to the quota.
// It is used when the call did not complete.
func (r *RateLimiter) Release(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := r.counters[userID]
	switch len(calls) {
	case 0:
	case 1:
		delete(r.counters, userID)
	default:
		r.counters[userID] = calls[:len(calls)-1]
	}
}

// Remaining returns how many calls userID may still make in the window.
func (r *RateLimiter) Remaining(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	valid := r.prune(userID, r.now())
	r.counters[userID] = valid
	if rem := r.limit - len(valid); rem > 0 {
		return rem
	}
	return 0
}

// prune drops timestamps older than the window. Callers hold r.mu.
func (r *RateLimiter) prune(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	existing := r.counters[userID]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(r.counters, userID)
		return nil
	}
	return valid
}
