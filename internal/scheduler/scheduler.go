// Package scheduler runs the recurring team jobs: the daily reset of mini-game
// attempts and the day-before match reminders.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/notify"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/service"
)

// jobTimeout bounds one run of a job over every team.
const jobTimeout = 2 * time.Minute

// Deps holds what the jobs read and write.
type Deps struct {
	Adapter  *repository.Adapter
	Tenants  *service.TenantService
	Games    *service.GameService
	Matches  *service.MatchService
	Roster   *service.RosterService
	Notifier notify.Notifier
	Location *time.Location
	Logger   *slog.Logger
}

type Scheduler struct {
	s    gocron.Scheduler
	deps Deps
	now  func() time.Time
}

func NewScheduler(deps Deps) (*Scheduler, error) {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	s, err := gocron.NewScheduler(
		gocron.WithLocation(deps.Location),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{s: s, deps: deps, now: time.Now}, nil
}

func (s *Scheduler) Start() error {
	var err error

	// Attempt counters - every day 00:05
	_, err = s.s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(s.runResetAttempts),
	)
	if err != nil {
		return fmt.Errorf("failed to create attempts reset job: %w", err)
	}

	// Match reminders - every day 10:00
	_, err = s.s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(10, 0, 0))),
		gocron.NewTask(s.runReminders),
	)
	if err != nil {
		return fmt.Errorf("failed to create reminders job: %w", err)
	}

	s.s.Start()
	return nil
}

func (s *Scheduler) Stop() error {
	return s.s.Shutdown()
}

func (s *Scheduler) runResetAttempts() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.ResetAttempts(ctx)
	if err != nil {
		s.deps.Logger.Error("attempts reset failed", "error", err)
	}
	s.deps.Logger.Info("attempts reset", "players", n)
}

func (s *Scheduler) runReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.SendReminders(ctx)
	if err != nil {
		s.deps.Logger.Error("match reminders failed", "error", err)
	}
	s.deps.Logger.Info("match reminders sent", "count", n)
}

func (s *Scheduler) activeTeams(ctx context.Context) ([]domain.Team, error) {
	teams, err := s.deps.Tenants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	active := teams[:0]
	for _, t := range teams {
		if t.Status == domain.TeamActive {
			active = append(active, t)
		}
	}
	return active, nil
}

// ResetAttempts clears stale mini-game counters of every active team. A failing
// team does not stop the others.
func (s *Scheduler) ResetAttempts(ctx context.Context) (int, error) {
	teams, err := s.activeTeams(ctx)
	if err != nil {
		return 0, err
	}
	var (
		total int
		errs  []error
	)
	for _, t := range teams {
		n, err := s.deps.Games.ResetDaily(ctx, t.ID)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("team %s: %w", t.ID, err))
		}
	}
	return total, errors.Join(errs...)
}

// SendReminders announces every scheduled match of tomorrow, naming the players
// who have not answered.
func (s *Scheduler) SendReminders(ctx context.Context) (int, error) {
	teams, err := s.activeTeams(ctx)
	if err != nil {
		return 0, err
	}
	tomorrow := s.now().In(s.deps.Location).AddDate(0, 0, 1).Format(domain.DateLayout)

	var (
		sent int
		errs []error
	)
	for _, t := range teams {
		n, err := s.remindTeam(ctx, t, tomorrow)
		sent += n
		if err != nil {
			errs = append(errs, fmt.Errorf("team %s: %w", t.ID, err))
		}
	}
	return sent, errors.Join(errs...)
}

func (s *Scheduler) remindTeam(ctx context.Context, team domain.Team, date string) (int, error) {
	matches, err := s.deps.Matches.List(ctx, team.ID)
	if err != nil {
		return 0, err
	}
	var due []domain.Match
	for _, m := range matches {
		if m.Date == date && m.Status == domain.MatchScheduled {
			due = append(due, m)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	players, err := s.deps.Roster.List(ctx, team.ID)
	if err != nil {
		return 0, err
	}
	opponents, err := names[domain.Opponent](ctx, s.deps.Adapter, team.ID, domain.CollectionOpponents, func(o domain.Opponent) (string, string) { return o.ID, o.Name })
	if err != nil {
		return 0, err
	}
	venues, err := names[domain.Venue](ctx, s.deps.Adapter, team.ID, domain.CollectionVenues, func(v domain.Venue) (string, string) { return v.ID, v.Name })
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, m := range due {
		text := notify.MatchReminder(m, opponents[m.OpponentID], venues[m.VenueID], pending(m, players))
		if err := s.deps.Notifier.Notify(ctx, team.Name, text); err != nil {
			return sent, fmt.Errorf("notify match %d: %w", m.ID, err)
		}
		sent++
	}
	return sent, nil
}

// pending returns the non-staff players who neither confirmed nor declined m.
func pending(m domain.Match, players []domain.Player) []domain.Player {
	var out []domain.Player
	for _, p := range players {
		if p.Role.IsStaff() {
			continue
		}
		st, ok := m.StatusOf(p.ID)
		if !ok || st.Attendance == domain.AttendancePending || st.Attendance == domain.AttendanceDoubtful {
			out = append(out, p)
		}
	}
	return out
}

func names[T any](ctx context.Context, a *repository.Adapter, teamID, collection string, key func(T) (string, string)) (map[string]string, error) {
	items, err := repository.List[T](ctx, a, teamID, collection, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(items))
	for _, it := range items {
		id, name := key(it)
		out[id] = name
	}
	return out, nil
}
