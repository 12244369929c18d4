package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/store"
)

// encode validates e and converts it to the document field map.
func encode(e Entity) (store.Fields, error) {
	if err := e.Validate(); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", e, err)
	}
	var fields store.Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode %T: %w", e, err)
	}
	return fields, nil
}

// decode converts a stored document into T.
func decode[T any](doc store.Document) (T, error) {
	var out T
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return out, fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	return out, nil
}

// pick returns the named fields of f. Names missing from f are written as null so
// that a cleared optional field is cleared in the store too.
func pick(f store.Fields, names []string) store.Fields {
	out := make(store.Fields, len(names))
	for _, n := range names {
		out[n] = f[n]
	}
	return out
}

// mapErr translates backend errors into the domain taxonomy. Domain errors and
// cancellations pass through; anything else the backend reports is a connectivity
// failure.
func mapErr(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNotFound(entity, id)
	}
	if errors.Is(err, store.ErrExists) {
		return domain.ErrConflict(fmt.Sprintf("%s %s already exists", entity, id))
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.ErrOffline(err)
}
