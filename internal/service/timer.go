package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/stopwatch"
)

// DefaultPeriod is the length of one period of an amateur match.
const DefaultPeriod = 25 * time.Minute

// EventTimerAlert is the push event carrying a stopwatch alert.
const EventTimerAlert = "timer.alert"

// Broadcaster pushes an event to every client watching a team. infra.WSHub
// implements it.
type Broadcaster interface {
	Publish(room, event string, data interface{})
}

type teamTimer struct {
	sw     *stopwatch.Stopwatch
	cancel context.CancelFunc
}

// TimerService keeps one field stopwatch per team and forwards its alerts to the
// team's clients.
type TimerService struct {
	ctx      context.Context
	clock    clockwork.Clock
	settings *SettingsService
	hub      Broadcaster
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*teamTimer
}

// NewTimerService creates a TimerService. Runners stop when ctx is cancelled.
func NewTimerService(ctx context.Context, clock clockwork.Clock, settings *SettingsService, hub Broadcaster, logger *slog.Logger) *TimerService {
	return &TimerService{
		ctx:      ctx,
		clock:    clock,
		settings: settings,
		hub:      hub,
		interval: stopwatch.DefaultPollInterval,
		logger:   logger,
		timers:   make(map[string]*teamTimer),
	}
}

// timer returns the team's stopwatch, creating it with the saved preferences.
func (s *TimerService) timer(ctx context.Context, teamID string) (*stopwatch.Stopwatch, error) {
	s.mu.Lock()
	t, ok := s.timers[teamID]
	s.mu.Unlock()
	if ok {
		return t.sw, nil
	}

	settings, err := s.settings.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[teamID]; ok {
		return t.sw, nil
	}
	sw := stopwatch.New(s.clock, DefaultPeriod, settings.Stopwatch)
	runCtx, cancel := context.WithCancel(s.ctx)
	runner := stopwatch.NewRunner(sw, s.clock, s.interval, func(a stopwatch.Alert) {
		s.hub.Publish(teamID, EventTimerAlert, a)
	}, s.logger.With("team_id", teamID))
	go runner.Run(runCtx)

	s.timers[teamID] = &teamTimer{sw: sw, cancel: cancel}
	return sw, nil
}

// Start resumes the team's countdown.
func (s *TimerService) Start(ctx context.Context, teamID string) (stopwatch.State, error) {
	sw, err := s.timer(ctx, teamID)
	if err != nil {
		return stopwatch.State{}, err
	}
	sw.Start()
	return sw.State(), nil
}

// Pause stops the countdown, keeping the elapsed time.
func (s *TimerService) Pause(ctx context.Context, teamID string) (stopwatch.State, error) {
	sw, err := s.timer(ctx, teamID)
	if err != nil {
		return stopwatch.State{}, err
	}
	sw.Pause()
	return sw.State(), nil
}

// Reset stops the countdown and sets a new target. A zero target uses DefaultPeriod.
func (s *TimerService) Reset(ctx context.Context, teamID string, target time.Duration) (stopwatch.State, error) {
	if target < 0 {
		return stopwatch.State{}, domain.ErrValidation("target must not be negative")
	}
	if target == 0 {
		target = DefaultPeriod
	}
	sw, err := s.timer(ctx, teamID)
	if err != nil {
		return stopwatch.State{}, err
	}
	sw.Reset(target)
	return sw.State(), nil
}

// State returns the team's stopwatch view.
func (s *TimerService) State(ctx context.Context, teamID string) (stopwatch.State, error) {
	sw, err := s.timer(ctx, teamID)
	if err != nil {
		return stopwatch.State{}, err
	}
	return sw.State(), nil
}

// SetPreferences validates, persists and applies new sound preferences.
func (s *TimerService) SetPreferences(ctx context.Context, teamID string, prefs domain.StopwatchPreferences) (stopwatch.State, error) {
	settings, err := s.settings.Get(ctx, teamID)
	if err != nil {
		return stopwatch.State{}, err
	}
	settings.Stopwatch = prefs
	if err := s.settings.Save(ctx, teamID, settings); err != nil {
		return stopwatch.State{}, err
	}
	sw, err := s.timer(ctx, teamID)
	if err != nil {
		return stopwatch.State{}, err
	}
	sw.SetPreferences(prefs)
	return sw.State(), nil
}

// Close stops every runner.
func (s *TimerService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.cancel()
		delete(s.timers, id)
	}
}
