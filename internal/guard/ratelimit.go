package guard

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter throttles team entry and PIN login per client with a sliding
// window. Keys whose window has emptied are dropped on the next check.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit hits per key in any window-long span.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Check records a hit for key unless the key is over its limit. A refused
// Result carries how long until the oldest hit leaves the window.
func (rl *RateLimiter) Check(_ context.Context, key string) Result {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	live := rl.prune(key, now)

	if len(live) >= rl.limit {
		return Result{
			Allowed:    false,
			Reason:     fmt.Sprintf("rate limit exceeded: %d/%s", rl.limit, rl.window),
			Guard:      "rate_limiter",
			RetryAfter: live[0].Add(rl.window).Sub(now),
		}
	}

	rl.hits[key] = append(live, now)
	return Result{Allowed: true}
}

// Len reports how many keys are being tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.hits)
}

// prune drops hits older than the window and forgets keys left with none.
func (rl *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	entries := rl.hits[key]
	live := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		delete(rl.hits, key)
		return nil
	}
	rl.hits[key] = live
	return live
}
