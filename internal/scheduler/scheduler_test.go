package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/service"
	"github.com/teamsheet/platform/internal/store"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recordingNotifier struct {
	mu    sync.Mutex
	teams []string
	texts []string
}

func (n *recordingNotifier) Notify(_ context.Context, teamName, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.teams = append(n.teams, teamName)
	n.texts = append(n.texts, text)
	return nil
}

type fixture struct {
	sched    *Scheduler
	adapter  *repository.Adapter
	tenants  *service.TenantService
	matches  *service.MatchService
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	a := repository.NewAdapter(store.NewMemoryStore(), discard())
	sink := service.NewLogSink(discard())
	f := &fixture{
		adapter:  a,
		tenants:  service.NewTenantService(a, "root", sink, discard()),
		matches:  service.NewMatchService(a, sink, discard()),
		notifier: &recordingNotifier{},
	}
	roster := service.NewRosterService(a, sink, discard())
	settings := service.NewSettingsService(a)

	for _, name := range []string{"Los Pibes", "Old Boys"} {
		_, err := f.tenants.Create(ctx, name, "")
		require.NoError(t, err)
	}
	for _, team := range []string{"los-pibes", "old-boys"} {
		for _, p := range []domain.Player{
			{Name: "Juan", Nickname: "Juanchi", Role: domain.RoleCaptain},
			{Name: "Pedro", Role: domain.RolePlayer},
			{Name: "Tito", Role: domain.RoleCoach},
		} {
			_, err := roster.Save(ctx, team, p)
			require.NoError(t, err)
		}
	}

	sched, err := NewScheduler(Deps{
		Adapter:  a,
		Tenants:  f.tenants,
		Games:    service.NewGameService(a, settings, time.UTC, discard()),
		Matches:  f.matches,
		Roster:   roster,
		Notifier: f.notifier,
		Location: time.UTC,
		Logger:   discard(),
	})
	require.NoError(t, err)
	sched.now = func() time.Time { return time.Date(2026, 11, 6, 10, 0, 0, 0, time.UTC) }
	f.sched = sched
	return f
}

func TestSendReminders_TomorrowsScheduledMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.SaveDocument(ctx, "los-pibes", domain.CollectionOpponents, domain.Opponent{ID: "vr", Name: "Villa Real"}))

	tomorrow, err := f.matches.CreateMatch(ctx, "los-pibes", service.ScheduleInput{Date: "2026-11-07", Time: "20:00", OpponentID: "vr", CourtFee: 45000})
	require.NoError(t, err)
	_, err = f.matches.SetAttendance(ctx, "los-pibes", tomorrow.ID, 1, domain.AttendanceConfirmed)
	require.NoError(t, err)

	_, err = f.matches.CreateMatch(ctx, "los-pibes", service.ScheduleInput{Date: "2026-11-14", Time: "20:00"})
	require.NoError(t, err)

	suspended, err := f.matches.CreateMatch(ctx, "old-boys", service.ScheduleInput{Date: "2026-11-07", Time: "18:00"})
	require.NoError(t, err)
	_, err = f.matches.SetStatus(ctx, "old-boys", suspended.ID, domain.MatchSuspended)
	require.NoError(t, err)

	n, err := f.sched.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.notifier.texts, 1)
	assert.Equal(t, "Los Pibes", f.notifier.teams[0])
	assert.Contains(t, f.notifier.texts[0], "vs Villa Real")
	assert.Contains(t, f.notifier.texts[0], "Faltan confirmar: Pedro")
	assert.NotContains(t, f.notifier.texts[0], "Tito", "staff are not chased")
}

func TestSendReminders_SkipsInactiveTeams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.matches.CreateMatch(ctx, "old-boys", service.ScheduleInput{Date: "2026-11-07", Time: "18:00"})
	require.NoError(t, err)
	_, err = f.tenants.SetStatus(ctx, "old-boys", domain.TeamInactive)
	require.NoError(t, err)

	n, err := f.sched.SendReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.notifier.texts)
}

func TestResetAttempts_ClearsStaleCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, team := range []string{"los-pibes", "old-boys"} {
		_, err := repository.Update(ctx, f.adapter, team, domain.CollectionPlayers, "2", func(p *domain.Player) ([]string, error) {
			p.GameAttempts = map[string]int{"penalties": 3}
			p.AttemptsDate = "2020-01-01"
			return []string{"gameAttempts", "attemptsDate"}, nil
		})
		require.NoError(t, err)
	}

	n, err := f.sched.ResetAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, err := repository.Get[domain.Player](ctx, f.adapter, "los-pibes", domain.CollectionPlayers, "2")
	require.NoError(t, err)
	assert.Empty(t, p.GameAttempts)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sched.Start())
	assert.NoError(t, f.sched.Stop())
}
