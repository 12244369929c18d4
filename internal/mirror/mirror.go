// Package mirror keeps an in-memory copy of one team's collections in sync with the
// document store through push subscriptions.
package mirror

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/seed"
	"github.com/teamsheet/platform/internal/store"
)

// State is a snapshot of every mirrored collection of a team. Slices are private
// copies; callers may keep them. Generation identifies one subscription set and
// is unique across mirrors; Version counts the snapshots applied within it.
type State struct {
	TeamID          string                  `json:"teamId"`
	Generation      uint64                  `json:"generation"`
	Version         uint64                  `json:"version"`
	Offline         bool                    `json:"offline"`
	Players         []domain.Player         `json:"players"`
	Matches         []domain.Match          `json:"matches"`
	Opponents       []domain.Opponent       `json:"opponents"`
	Venues          []domain.Venue          `json:"venues"`
	Tournaments     []domain.Tournament     `json:"tournaments"`
	StandingsPhotos []domain.StandingsPhoto `json:"standingsPhotos"`
	Settings        domain.AppSettings      `json:"settings"`
	Info            domain.TeamInfo         `json:"info"`
}

// Match returns the match with the given id.
func (s State) Match(id int64) (domain.Match, bool) {
	for _, m := range s.Matches {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Match{}, false
}

// Player returns the player with the given id.
func (s State) Player(id int64) (domain.Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Player{}, false
}

// Listener is told which collection changed and receives the new state. Listeners
// are called one at a time in Version order and must not block.
type Listener func(collection string, s State)

// generations hands out subscription generations process-wide, so a reopened
// team never repeats a (Generation, Version) pair.
var generations atomic.Uint64

// Mirror owns one subscription per entity type for the selected team. Each
// snapshot replaces the corresponding array wholesale.
type Mirror struct {
	adapter  *repository.Adapter
	fallback *seed.Dataset
	logger   *slog.Logger

	// nmu is held from applying a snapshot until its listeners return.
	nmu sync.Mutex

	mu         sync.RWMutex
	state      State
	generation uint64
	unsubs     []store.Unsubscribe
	pending    map[string]bool
	failed     map[string]bool
	ready      chan struct{}

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// New creates a mirror. fallback, when set, is served for any collection whose
// subscription fails.
func New(adapter *repository.Adapter, fallback *seed.Dataset, logger *slog.Logger) *Mirror {
	ready := make(chan struct{})
	close(ready)
	return &Mirror{
		adapter:   adapter,
		fallback:  fallback,
		logger:    logger,
		ready:     ready,
		listeners: make(map[int]Listener),
	}
}

// SelectTeam tears down the current subscriptions and opens one per entity type for
// teamID. Snapshots still in flight for the previous team are dropped.
func (m *Mirror) SelectTeam(ctx context.Context, teamID string) {
	m.mu.Lock()
	for _, unsub := range m.unsubs {
		unsub()
	}
	if len(m.pending) > 0 {
		close(m.ready)
	}
	gen := generations.Add(1)
	m.generation = gen
	m.state = State{TeamID: teamID, Generation: gen, Settings: domain.DefaultAppSettings()}
	m.unsubs = nil
	m.failed = make(map[string]bool)
	m.pending = make(map[string]bool, len(collections))
	for _, c := range collections {
		m.pending[c] = true
	}
	m.ready = make(chan struct{})
	m.mu.Unlock()

	unsubs := []store.Unsubscribe{
		repository.Subscribe(ctx, m.adapter, teamID, domain.CollectionPlayers, "",
			func(v []domain.Player) { m.apply(gen, domain.CollectionPlayers, func(s *State) { s.Players = v }) },
			m.onError(gen, domain.CollectionPlayers)),
		repository.Subscribe(ctx, m.adapter, teamID, domain.CollectionMatches, "",
			func(v []domain.Match) { m.apply(gen, domain.CollectionMatches, func(s *State) { s.Matches = v }) },
			m.onError(gen, domain.CollectionMatches)),
		repository.Subscribe(ctx, m.adapter, teamID, domain.CollectionOpponents, "",
			func(v []domain.Opponent) {
				m.apply(gen, domain.CollectionOpponents, func(s *State) { s.Opponents = v })
			},
			m.onError(gen, domain.CollectionOpponents)),
		repository.Subscribe(ctx, m.adapter, teamID, domain.CollectionVenues, "",
			func(v []domain.Venue) { m.apply(gen, domain.CollectionVenues, func(s *State) { s.Venues = v }) },
			m.onError(gen, domain.CollectionVenues)),
		repository.Subscribe(ctx, m.adapter, teamID, domain.CollectionTournaments, "",
			func(v []domain.Tournament) {
				m.apply(gen, domain.CollectionTournaments, func(s *State) { s.Tournaments = v })
			},
			m.onError(gen, domain.CollectionTournaments)),
		repository.Subscribe(ctx, m.adapter, teamID, domain.CollectionStandingsPhotos, "",
			func(v []domain.StandingsPhoto) {
				m.apply(gen, domain.CollectionStandingsPhotos, func(s *State) { s.StandingsPhotos = v })
			},
			m.onError(gen, domain.CollectionStandingsPhotos)),
		repository.Subscribe(ctx, m.adapter, teamID, domain.CollectionSettings, domain.AppSettingsDocID,
			func(v []domain.AppSettings) {
				m.apply(gen, domain.CollectionSettings, func(s *State) {
					s.Settings = domain.DefaultAppSettings()
					if len(v) > 0 {
						s.Settings = v[0]
					}
				})
			},
			m.onError(gen, domain.CollectionSettings)),
		repository.Subscribe(ctx, m.adapter, teamID, domain.CollectionMyTeam, domain.TeamInfoDocID,
			func(v []domain.TeamInfo) {
				m.apply(gen, domain.CollectionMyTeam, func(s *State) {
					s.Info = domain.TeamInfo{}
					if len(v) > 0 {
						s.Info = v[0]
					}
				})
			},
			m.onError(gen, domain.CollectionMyTeam)),
	}

	m.mu.Lock()
	if m.generation == gen {
		m.unsubs = unsubs
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	// A concurrent SelectTeam won; these subscriptions are already stale.
	for _, unsub := range unsubs {
		unsub()
	}
}

// collections lists every mirrored entity type.
var collections = []string{
	domain.CollectionPlayers,
	domain.CollectionMatches,
	domain.CollectionOpponents,
	domain.CollectionVenues,
	domain.CollectionTournaments,
	domain.CollectionStandingsPhotos,
	domain.CollectionSettings,
	domain.CollectionMyTeam,
}

// apply stores a live snapshot. A collection that failed earlier is live again,
// so the state is offline only while some collection is still failing.
func (m *Mirror) apply(gen uint64, collection string, set func(*State)) {
	m.nmu.Lock()
	defer m.nmu.Unlock()

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	set(&m.state)
	delete(m.failed, collection)
	m.state.Offline = len(m.failed) > 0
	m.state.Version++
	m.markDelivered(collection)
	snapshot := m.state.clone()
	m.mu.Unlock()

	m.notify(collection, snapshot)
}

func (m *Mirror) onError(gen uint64, collection string) store.ErrorFunc {
	return func(err error) {
		m.nmu.Lock()
		defer m.nmu.Unlock()

		m.mu.Lock()
		if gen != m.generation {
			m.mu.Unlock()
			return
		}
		m.logger.Error("mirror subscription error",
			"team_id", m.state.TeamID,
			"collection", collection,
			"error", err,
		)
		m.failed[collection] = true
		m.state.Offline = true
		if m.fallback != nil {
			restore(m.fallback, collection, &m.state)
		}
		m.state.Version++
		m.markDelivered(collection)
		snapshot := m.state.clone()
		m.mu.Unlock()

		m.notify(collection, snapshot)
	}
}

// markDelivered must be called with mu held.
func (m *Mirror) markDelivered(collection string) {
	if !m.pending[collection] {
		return
	}
	delete(m.pending, collection)
	if len(m.pending) == 0 {
		close(m.ready)
	}
}

// Ready blocks until every collection of the selected team delivered its first
// snapshot or failed.
func (m *Mirror) Ready(ctx context.Context) error {
	m.mu.RLock()
	ready := m.ready
	m.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a copy of the current state.
func (m *Mirror) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// OnChange registers fn for every applied snapshot and returns a function that
// removes it.
func (m *Mirror) OnChange(fn Listener) func() {
	m.lmu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.lmu.Unlock()

	return func() {
		m.lmu.Lock()
		delete(m.listeners, id)
		m.lmu.Unlock()
	}
}

func (m *Mirror) notify(collection string, s State) {
	m.lmu.RLock()
	defer m.lmu.RUnlock()
	for _, fn := range m.listeners {
		fn(collection, s)
	}
}

// Close stops every subscription.
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	if len(m.pending) > 0 {
		close(m.ready)
		m.pending = nil
	}
	m.generation = generations.Add(1)
}

// restore copies the fallback dataset's data for one collection into s.
func restore(d *seed.Dataset, collection string, s *State) {
	switch collection {
	case domain.CollectionPlayers:
		s.Players = slices.Clone(d.Players)
	case domain.CollectionMatches:
		s.Matches = make([]domain.Match, len(d.Matches))
		for i, m := range d.Matches {
			s.Matches[i] = cloneMatch(m)
		}
	case domain.CollectionOpponents:
		s.Opponents = slices.Clone(d.Opponents)
	case domain.CollectionVenues:
		s.Venues = slices.Clone(d.Venues)
	case domain.CollectionTournaments:
		s.Tournaments = slices.Clone(d.Tournaments)
	case domain.CollectionStandingsPhotos:
		s.StandingsPhotos = slices.Clone(d.StandingsPhotos)
	case domain.CollectionSettings:
		s.Settings = d.Settings
	case domain.CollectionMyTeam:
		s.Info = d.Info
	}
}

func (s State) clone() State {
	out := s
	out.Players = slices.Clone(s.Players)
	out.Matches = make([]domain.Match, len(s.Matches))
	for i, match := range s.Matches {
		out.Matches[i] = cloneMatch(match)
	}
	out.Opponents = slices.Clone(s.Opponents)
	out.Venues = slices.Clone(s.Venues)
	out.Tournaments = slices.Clone(s.Tournaments)
	out.StandingsPhotos = slices.Clone(s.StandingsPhotos)
	return out
}

func cloneMatch(m domain.Match) domain.Match {
	m.PlayerStatuses = slices.Clone(m.PlayerStatuses)
	if m.Ratings != nil {
		ratings := make(domain.Ratings, len(m.Ratings))
		for rater, byTarget := range m.Ratings {
			inner := make(map[string]float64, len(byTarget))
			for k, v := range byTarget {
				inner[k] = v
			}
			ratings[rater] = inner
		}
		m.Ratings = ratings
	}
	if m.ThirdHalf != nil {
		th := domain.ThirdHalf{Items: slices.Clone(m.ThirdHalf.Items)}
		m.ThirdHalf = &th
	}
	return m
}
