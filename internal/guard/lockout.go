package guard

import (
	"sync"
	"time"

	"github.com/teamsheet/platform/internal/domain"
)

const (
	MaxAttempts   = 5
	LockoutWindow = 15 * time.Minute
)

// Lockout counts failed PIN logins per key (team and player) and locks the key once
// MaxAttempts failures fall within the window.
type Lockout struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
}

// NewLockout creates a lockout with the default limits.
func NewLockout() *Lockout {
	return &Lockout{
		failures: make(map[string][]time.Time),
		max:      MaxAttempts,
		window:   LockoutWindow,
		now:      time.Now,
	}
}

// CheckLocked returns ErrAccountLocked if key has too many recent failures.
func (l *Lockout) CheckLocked(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.recent(key)) >= l.max {
		return domain.ErrAccountLocked("too many failed PIN attempts, try again later")
	}
	return nil
}

// RecordAttempt records a login outcome. Success clears the failure history.
func (l *Lockout) RecordAttempt(key string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.failures, key)
		return
	}
	l.failures[key] = append(l.recent(key), l.now())
}

// recent must be called with mu held.
func (l *Lockout) recent(key string) []time.Time {
	cutoff := l.now().Add(-l.window)
	entries := l.failures[key]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(l.failures, key)
		return nil
	}
	l.failures[key] = valid
	return valid
}
