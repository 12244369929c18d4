package store

import (
	"context"
	"errors"

	"github.com/teamsheet/platform/internal/domain"
)

var errReadOnly = errors.New("store is read-only: no backend configured")

// ReadOnly serves reads from the wrapped backend and rejects every write with
// domain.ErrOffline. It fronts the bundled seed dataset when no backend is configured.
type ReadOnly struct {
	Backend
}

// NewReadOnly wraps b.
func NewReadOnly(b Backend) *ReadOnly {
	return &ReadOnly{Backend: b}
}

func (r *ReadOnly) Save(context.Context, Ref, Fields) error {
	return domain.ErrOffline(errReadOnly)
}

func (r *ReadOnly) Create(context.Context, Ref, Fields) error {
	return domain.ErrOffline(errReadOnly)
}

func (r *ReadOnly) Update(context.Context, Ref, UpdateFunc) error {
	return domain.ErrOffline(errReadOnly)
}

func (r *ReadOnly) Delete(context.Context, Ref) error {
	return domain.ErrOffline(errReadOnly)
}

// Ping reports the store as offline.
func (r *ReadOnly) Ping(context.Context) error {
	return domain.ErrOffline(errReadOnly)
}
