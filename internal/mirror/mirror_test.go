package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/seed"
	"github.com/teamsheet/platform/internal/store"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func waitFor(t *testing.T, m *Mirror, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := m.State(); cond(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met, state: %+v", m.State())
	return State{}
}

func TestMirror_TracksCollections(t *testing.T) {
	a := repository.NewAdapter(store.NewMemoryStore(), discard())
	ctx := context.Background()
	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionPlayers, domain.Player{ID: 1, Name: "Ana", Role: domain.RolePlayer}))

	m := New(a, nil, discard())
	defer m.Close()
	m.SelectTeam(ctx, "t1")
	require.NoError(t, m.Ready(ctx))

	s := m.State()
	assert.Equal(t, "t1", s.TeamID)
	require.Len(t, s.Players, 1)
	assert.Equal(t, domain.DefaultAppSettings(), s.Settings, "missing settings singleton uses defaults")

	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionMatches,
		domain.Match{ID: 3, Date: "2026-03-14", Status: domain.MatchScheduled}))
	s = waitFor(t, m, func(s State) bool { return len(s.Matches) == 1 })
	_, ok := s.Match(3)
	assert.True(t, ok)
}

func TestMirror_SelectTeamSwitchesSubscriptions(t *testing.T) {
	a := repository.NewAdapter(store.NewMemoryStore(), discard())
	ctx := context.Background()
	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionVenues, domain.Venue{ID: "v1", Name: "Uno"}))
	require.NoError(t, a.SaveDocument(ctx, "t2", domain.CollectionVenues, domain.Venue{ID: "v2", Name: "Dos"}))

	m := New(a, nil, discard())
	defer m.Close()
	m.SelectTeam(ctx, "t1")
	require.NoError(t, m.Ready(ctx))
	assert.Equal(t, "v1", m.State().Venues[0].ID)

	m.SelectTeam(ctx, "t2")
	require.NoError(t, m.Ready(ctx))
	s := m.State()
	assert.Equal(t, "t2", s.TeamID)
	require.Len(t, s.Venues, 1)
	assert.Equal(t, "v2", s.Venues[0].ID)

	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionVenues, domain.Venue{ID: "v3", Name: "Tres"}))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, m.State().Venues, 1, "old team changes are not mirrored")
}

func TestMirror_StateIsACopy(t *testing.T) {
	a := repository.NewAdapter(store.NewMemoryStore(), discard())
	ctx := context.Background()
	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionMatches, domain.Match{
		ID: 1, Date: "2026-03-14", Status: domain.MatchScheduled,
		PlayerStatuses: []domain.PlayerMatchStatus{domain.NewPlayerMatchStatus(1)},
	}))

	m := New(a, nil, discard())
	defer m.Close()
	m.SelectTeam(ctx, "t1")
	require.NoError(t, m.Ready(ctx))

	s := m.State()
	s.Matches[0].PlayerStatuses[0].Attendance = domain.AttendanceConfirmed
	assert.Equal(t, domain.AttendancePending, m.State().Matches[0].PlayerStatuses[0].Attendance)
}

func TestMirror_ListenersSeeEverySnapshot(t *testing.T) {
	a := repository.NewAdapter(store.NewMemoryStore(), discard())
	ctx := context.Background()

	m := New(a, nil, discard())
	defer m.Close()

	changed := make(chan string, 32)
	stop := m.OnChange(func(collection string, _ State) { changed <- collection })
	defer stop()

	m.SelectTeam(ctx, "t1")
	require.NoError(t, m.Ready(ctx))

	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionOpponents, domain.Opponent{ID: "o1", Name: "Rival"}))
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c := <-changed:
			if c == domain.CollectionOpponents && len(m.State().Opponents) == 1 {
				return
			}
		case <-timeout:
			t.Fatal("listener not called for opponents")
		}
	}
}

// failingBackend fails every subscription.
type failingBackend struct {
	store.Backend
}

func (failingBackend) Subscribe(_ context.Context, _ store.Query, _ store.DataFunc, onError store.ErrorFunc) store.Unsubscribe {
	go onError(errors.New("dial tcp: connection refused"))
	return func() {}
}

func TestMirror_FallsBackToSeedOnError(t *testing.T) {
	fallback, err := seed.Bundled()
	require.NoError(t, err)

	a := repository.NewAdapter(failingBackend{Backend: store.NewMemoryStore()}, discard())
	m := New(a, fallback, discard())
	defer m.Close()

	ctx := context.Background()
	m.SelectTeam(ctx, "demo")
	require.NoError(t, m.Ready(ctx))

	s := m.State()
	assert.True(t, s.Offline)
	assert.Len(t, s.Players, len(fallback.Players))
	assert.Len(t, s.Matches, len(fallback.Matches))
	assert.Equal(t, fallback.Info.Name, s.Info.Name)
}

// recoveringBackend fails the players subscription once, then delivers live
// data when resume is closed.
type recoveringBackend struct {
	store.Backend
	resume chan struct{}
}

func (b recoveringBackend) Subscribe(ctx context.Context, q store.Query, onData store.DataFunc, onError store.ErrorFunc) store.Unsubscribe {
	if q.Collection != domain.CollectionPlayers {
		return b.Backend.Subscribe(ctx, q, onData, onError)
	}
	go func() {
		onError(errors.New("stream reset"))
		<-b.resume
		onData([]store.Document{{ID: "1", Fields: store.Fields{"id": 1.0, "name": "Ana", "role": string(domain.RolePlayer)}}})
	}()
	return func() {}
}

func TestMirror_LiveSnapshotClearsOffline(t *testing.T) {
	fallback, err := seed.Bundled()
	require.NoError(t, err)
	b := recoveringBackend{Backend: store.NewMemoryStore(), resume: make(chan struct{})}
	m := New(repository.NewAdapter(b, discard()), fallback, discard())
	defer m.Close()

	ctx := context.Background()
	m.SelectTeam(ctx, "t1")
	require.NoError(t, m.Ready(ctx))
	s := m.State()
	assert.True(t, s.Offline)
	assert.Len(t, s.Players, len(fallback.Players))

	close(b.resume)
	s = waitFor(t, m, func(s State) bool { return !s.Offline })
	require.Len(t, s.Players, 1)
	assert.Equal(t, "Ana", s.Players[0].Name)
}

func TestMirror_ListenersSeeVersionsInOrder(t *testing.T) {
	a := repository.NewAdapter(store.NewMemoryStore(), discard())
	ctx := context.Background()
	m := New(a, nil, discard())
	defer m.Close()

	var (
		mu       sync.Mutex
		versions []uint64
	)
	stop := m.OnChange(func(_ string, s State) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	})
	defer stop()

	m.SelectTeam(ctx, "t1")
	require.NoError(t, m.Ready(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionVenues, domain.Venue{ID: fmt.Sprintf("v%d", i), Name: "Cancha"}))
		}(i)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionOpponents, domain.Opponent{ID: fmt.Sprintf("o%d", i), Name: "Rival"}))
		}(i)
	}
	wg.Wait()
	waitFor(t, m, func(s State) bool { return len(s.Venues) == 10 && len(s.Opponents) == 10 })

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, versions)
	for i := 1; i < len(versions); i++ {
		assert.Less(t, versions[i-1], versions[i], "listeners saw version %d after %d", versions[i], versions[i-1])
	}
}

func TestRegistry_ReopenedMirrorStartsNewGeneration(t *testing.T) {
	a := repository.NewAdapter(store.NewMemoryStore(), discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(ctx, a, nil, discard())
	defer r.Close()

	first, err := r.State(ctx, "t1")
	require.NoError(t, err)
	r.Drop("t1")
	second, err := r.State(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version, "both mirrors applied the same initial snapshots")
	assert.NotEqual(t, first.Generation, second.Generation)
}

func TestRegistry_ReusesMirrors(t *testing.T) {
	a := repository.NewAdapter(store.NewMemoryStore(), discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, a, nil, discard())
	defer r.Close()

	m1, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	m2, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	r.Drop("t1")
	m3, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.NotSame(t, m1, m3)
}

func TestRegistry_OnOpenRunsOncePerMirror(t *testing.T) {
	a := repository.NewAdapter(store.NewMemoryStore(), discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, a, nil, discard())
	defer r.Close()

	var opened []string
	r.OnOpen(func(teamID string, _ *Mirror) { opened = append(opened, teamID) })

	_, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	_, err = r.Get(ctx, "t1")
	require.NoError(t, err)
	_, err = r.Get(ctx, "t2")
	require.NoError(t, err)

	assert.Equal(t, []string{"t1", "t2"}, opened)
}
