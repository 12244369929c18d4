// Package stopwatch is the field timer: a countdown anchored to the wall clock with
// periodic alerts and one terminal alert.
//
// Remaining time is always recomputed from absolute timestamps, never decremented
// per tick, so a late or skipped poll cannot make the timer drift.
package stopwatch

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teamsheet/platform/internal/domain"
)

// TerminalSound is played when the countdown reaches zero.
const TerminalSound = "final-whistle"

// Remaining returns target − (accumulated + (now − anchor)). A zero anchor means the
// timer is paused. The result is negative in overtime.
func Remaining(target, accumulated time.Duration, anchor, now time.Time) time.Duration {
	return target - elapsed(accumulated, anchor, now)
}

func elapsed(accumulated time.Duration, anchor, now time.Time) time.Duration {
	if anchor.IsZero() {
		return accumulated
	}
	return accumulated + now.Sub(anchor)
}

// AlertKind distinguishes the two alert sounds.
type AlertKind string

const (
	AlertPeriodic AlertKind = "periodic"
	AlertTerminal AlertKind = "terminal"
)

// Alert is one sound the client should play.
type Alert struct {
	Kind      AlertKind     `json:"kind"`
	Sound     string        `json:"sound"`
	Volume    float64       `json:"volume"`
	Muted     bool          `json:"muted"`
	Remaining time.Duration `json:"remaining"`
	At        time.Time     `json:"at"`
}

// State is a point-in-time view of a stopwatch.
type State struct {
	Target      time.Duration               `json:"target"`
	Elapsed     time.Duration               `json:"elapsed"`
	Remaining   time.Duration               `json:"remaining"`
	Running     bool                        `json:"running"`
	Finished    bool                        `json:"finished"`
	Preferences domain.StopwatchPreferences `json:"preferences"`
}

// Stopwatch is a countdown. It is safe for concurrent use.
type Stopwatch struct {
	clock clockwork.Clock

	mu          sync.Mutex
	target      time.Duration
	accumulated time.Duration
	anchor      time.Time
	prefs       domain.StopwatchPreferences

	// lastPeriod is the index of the last interval boundary alerted.
	lastPeriod int64
	// terminalFired latches the terminal alert until Reset.
	terminalFired bool
}

// New creates a paused stopwatch counting down from target.
func New(clock clockwork.Clock, target time.Duration, prefs domain.StopwatchPreferences) *Stopwatch {
	return &Stopwatch{clock: clock, target: target, prefs: prefs}
}

// Start resumes counting. Starting a running stopwatch does nothing.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.anchor.IsZero() {
		s.anchor = s.clock.Now()
	}
}

// Pause folds the running span into the accumulated time.
func (s *Stopwatch) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.anchor.IsZero() {
		return
	}
	s.accumulated = elapsed(s.accumulated, s.anchor, s.clock.Now())
	s.anchor = time.Time{}
}

// Reset stops the stopwatch and sets a new target. Alerts are re-armed.
func (s *Stopwatch) Reset(target time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
	s.accumulated = 0
	s.anchor = time.Time{}
	s.lastPeriod = 0
	s.terminalFired = false
}

// SetPreferences replaces the sound preferences.
func (s *Stopwatch) SetPreferences(p domain.StopwatchPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

// Remaining returns the time left now.
func (s *Stopwatch) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Remaining(s.target, s.accumulated, s.anchor, s.clock.Now())
}

// State returns the current view.
func (s *Stopwatch) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	rem := Remaining(s.target, s.accumulated, s.anchor, now)
	return State{
		Target:      s.target,
		Elapsed:     elapsed(s.accumulated, s.anchor, now),
		Remaining:   rem,
		Running:     !s.anchor.IsZero(),
		Finished:    rem <= 0,
		Preferences: s.prefs,
	}
}

// Poll returns the alerts due since the previous poll. A periodic alert is due when
// elapsed time has crossed a new multiple of the alert interval; several boundaries
// crossed between polls produce one alert. The terminal alert fires exactly once,
// the first time remaining time is zero or less.
func (s *Stopwatch) Poll() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	el := elapsed(s.accumulated, s.anchor, now)
	rem := s.target - el

	if rem <= 0 {
		if s.terminalFired {
			return nil
		}
		s.terminalFired = true
		return []Alert{s.alert(AlertTerminal, TerminalSound, rem, now)}
	}

	interval := time.Duration(s.prefs.AlertIntervalSec) * time.Second
	if interval <= 0 {
		return nil
	}
	period := int64(el / interval)
	if period <= s.lastPeriod {
		return nil
	}
	s.lastPeriod = period
	return []Alert{s.alert(AlertPeriodic, s.prefs.Sound, rem, now)}
}

func (s *Stopwatch) alert(kind AlertKind, sound string, rem time.Duration, now time.Time) Alert {
	a := Alert{
		Kind:      kind,
		Sound:     sound,
		Volume:    s.prefs.Volume,
		Muted:     s.prefs.Muted,
		Remaining: rem,
		At:        now,
	}
	if a.Muted {
		a.Volume = 0
	}
	return a
}
