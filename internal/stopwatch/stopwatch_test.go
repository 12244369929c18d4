package stopwatch

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsheet/platform/internal/domain"
)

var prefs = domain.StopwatchPreferences{Volume: 0.5, Sound: "whistle", AlertIntervalSec: 60}

func TestRemaining_Pure(t *testing.T) {
	anchor := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		accumulated time.Duration
		anchor      time.Time
		now         time.Time
		want        time.Duration
	}{
		{"paused fresh", 0, time.Time{}, anchor, 10 * time.Minute},
		{"paused after 3m", 3 * time.Minute, time.Time{}, anchor.Add(time.Hour), 7 * time.Minute},
		{"running 2m plus 3m accumulated", 3 * time.Minute, anchor, anchor.Add(2 * time.Minute), 5 * time.Minute},
		{"overtime", 0, anchor, anchor.Add(11 * time.Minute), -time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Remaining(10*time.Minute, tt.accumulated, tt.anchor, tt.now))
		})
	}
}

func TestStopwatch_RemainingIndependentOfPolls(t *testing.T) {
	clockA := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC))
	clockB := clockwork.NewFakeClockAt(clockA.Now())

	a := New(clockA, 20*time.Minute, prefs)
	b := New(clockB, 20*time.Minute, prefs)
	a.Start()
	b.Start()

	for i := 0; i < 300; i++ {
		clockA.Advance(time.Second)
		a.Poll()
	}
	clockB.Advance(300 * time.Second)

	assert.Equal(t, b.Remaining(), a.Remaining())
	assert.Equal(t, 15*time.Minute, a.Remaining())
}

func TestStopwatch_PauseAndResume(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := New(clock, 10*time.Minute, prefs)

	sw.Start()
	clock.Advance(2 * time.Minute)
	sw.Pause()
	clock.Advance(time.Hour)
	assert.Equal(t, 8*time.Minute, sw.Remaining())
	assert.False(t, sw.State().Running)

	sw.Start()
	sw.Start()
	clock.Advance(time.Minute)
	assert.Equal(t, 7*time.Minute, sw.Remaining())
}

func TestStopwatch_PeriodicAlerts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := New(clock, 10*time.Minute, prefs)
	sw.Start()

	clock.Advance(59 * time.Second)
	assert.Empty(t, sw.Poll())

	clock.Advance(time.Second)
	alerts := sw.Poll()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPeriodic, alerts[0].Kind)
	assert.Equal(t, "whistle", alerts[0].Sound)
	assert.Equal(t, 9*time.Minute, alerts[0].Remaining)

	assert.Empty(t, sw.Poll(), "same boundary alerts once")

	clock.Advance(3 * time.Minute)
	assert.Len(t, sw.Poll(), 1, "missed boundaries collapse into one alert")
}

func TestStopwatch_TerminalAlertLatched(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := New(clock, 2*time.Minute, domain.StopwatchPreferences{Sound: "whistle", Muted: true, Volume: 0.9})
	sw.Start()

	clock.Advance(2*time.Minute + 5*time.Second)
	alerts := sw.Poll()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertTerminal, alerts[0].Kind)
	assert.Equal(t, TerminalSound, alerts[0].Sound)
	assert.True(t, alerts[0].Muted)
	assert.Zero(t, alerts[0].Volume)

	clock.Advance(time.Minute)
	assert.Empty(t, sw.Poll())
	assert.True(t, sw.State().Finished)

	sw.Reset(time.Minute)
	sw.Start()
	clock.Advance(time.Minute)
	require.Len(t, sw.Poll(), 1, "reset re-arms the terminal alert")
}

func TestRunner_ForwardsAlerts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := New(clock, time.Second, prefs)
	sw.Start()

	got := make(chan Alert, 4)
	r := NewRunner(sw, clock, 100*time.Millisecond, func(a Alert) { got <- a }, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	select {
	case a := <-got:
		assert.Equal(t, AlertTerminal, a.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no alert forwarded")
	}
}
