package mirror

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/seed"
)

// Registry keeps one mirror per team for the lifetime of the server. Mirrors are
// opened lazily on first use.
type Registry struct {
	ctx      context.Context
	adapter  *repository.Adapter
	fallback *seed.Dataset
	logger   *slog.Logger

	mu      sync.Mutex
	mirrors map[string]*Mirror
	onOpen  []func(teamID string, m *Mirror)
}

// NewRegistry creates a registry. Subscriptions live until ctx is cancelled or
// Close is called.
func NewRegistry(ctx context.Context, adapter *repository.Adapter, fallback *seed.Dataset, logger *slog.Logger) *Registry {
	return &Registry{
		ctx:      ctx,
		adapter:  adapter,
		fallback: fallback,
		logger:   logger,
		mirrors:  make(map[string]*Mirror),
	}
}

// Get returns the mirror of teamID, opening it if needed, once its first snapshots
// have arrived.
func (r *Registry) Get(ctx context.Context, teamID string) (*Mirror, error) {
	r.mu.Lock()
	m, ok := r.mirrors[teamID]
	if !ok {
		m = New(r.adapter, r.fallback, r.logger)
		m.SelectTeam(r.ctx, teamID)
		r.mirrors[teamID] = m
		r.logger.Info("mirror opened", "team_id", teamID)
		for _, fn := range r.onOpen {
			fn(teamID, m)
		}
	}
	r.mu.Unlock()

	if err := m.Ready(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// OnOpen registers fn to run whenever a team's mirror is opened. It runs under
// the registry lock and must only attach listeners.
func (r *Registry) OnOpen(fn func(teamID string, m *Mirror)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOpen = append(r.onOpen, fn)
}

// State is shorthand for Get followed by Mirror.State.
func (r *Registry) State(ctx context.Context, teamID string) (State, error) {
	m, err := r.Get(ctx, teamID)
	if err != nil {
		return State{}, err
	}
	return m.State(), nil
}

// Drop closes and forgets the mirror of teamID.
func (r *Registry) Drop(teamID string) {
	r.mu.Lock()
	m, ok := r.mirrors[teamID]
	delete(r.mirrors, teamID)
	r.mu.Unlock()

	if ok {
		m.Close()
		r.logger.Info("mirror closed", "team_id", teamID)
	}
}

// Close closes every mirror.
func (r *Registry) Close() {
	r.mu.Lock()
	mirrors := r.mirrors
	r.mirrors = make(map[string]*Mirror)
	r.mu.Unlock()

	for _, m := range mirrors {
		m.Close()
	}
}
