package chat

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClockedLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, window)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl, _ := newClockedLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("@ana:example.org") {
			t.Fatalf("call %d rejected", i+1)
		}
	}
	if rl.Allow("@ana:example.org") {
		t.Error("fourth call allowed")
	}
	if got := rl.Remaining("@ana:example.org"); got != 0 {
		t.Errorf("Remaining: got %d, want 0", got)
	}
}

func TestRateLimiter_IndependentPerUser(t *testing.T) {
	rl, _ := newClockedLimiter(1, time.Minute)
	rl.Allow("ana")
	if rl.Allow("ana") {
		t.Error("ana should be limited")
	}
	if !rl.Allow("bob") {
		t.Error("bob should not be limited")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl, clock := newClockedLimiter(2, time.Minute)
	rl.Allow("ana")
	clock.Advance(30 * time.Second)
	rl.Allow("ana")
	if rl.Allow("ana") {
		t.Fatal("third call inside the window allowed")
	}

	clock.Advance(31 * time.Second)
	if got := rl.Remaining("ana"); got != 1 {
		t.Errorf("Remaining after first call expired: got %d, want 1", got)
	}
	if !rl.Allow("ana") {
		t.Error("call after expiry rejected")
	}
}

func TestRateLimiter_Release(t *testing.T) {
	rl, _ := newClockedLimiter(2, time.Minute)
	rl.Release("ana")
	rl.Allow("ana")
	rl.Allow("ana")
	rl.Release("ana")
	if got := rl.Remaining("ana"); got != 1 {
		t.Fatalf("Remaining after release: got %d, want 1", got)
	}
	rl.Release("ana")
	if got := rl.Remaining("ana"); got != 2 {
		t.Errorf("Remaining after releasing all: got %d, want 2", got)
	}
	if !rl.Allow("ana") || !rl.Allow("ana") || rl.Allow("ana") {
		t.Error("limit not enforced after release")
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	if rl.limit != DefaultRateLimit || rl.window != time.Minute {
		t.Errorf("defaults: limit %d window %v", rl.limit, rl.window)
	}
	if got := rl.Remaining("new"); got != DefaultRateLimit {
		t.Errorf("Remaining for new user: got %d", got)
	}
}
