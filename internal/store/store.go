// Package store holds the document store backends: an in-memory store with push
// subscriptions, a Postgres JSONB store fed by a change feed, and Firestore.
//
// Every backend offers the same contract. Subscriptions push the full current array of a
// collection (or a zero/one element array for a singleton document) on every change,
// starting with the initial state. Save is a merge-write of top-level fields. Create
// writes a document only if it does not exist yet. Update is an atomic
// read-modify-write of one document.
package store

import (
	"cmp"
	"context"
	"errors"
	"sort"
	"strconv"
)

// ErrNotFound is returned by Get and Update when the document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrExists is returned by Create when the document is already stored.
var ErrExists = errors.New("document already exists")

// Fields is the raw field map of a document.
type Fields map[string]interface{}

// Document is one stored document.
type Document struct {
	ID     string
	Fields Fields
}

// Ref addresses a single document. An empty TeamID addresses a root collection.
// Collection may be a nested path such as "matches/12/messages".
type Ref struct {
	TeamID     string
	Collection string
	DocID      string
}

// Query selects a collection, or a single document of it when DocID is set.
type Query struct {
	TeamID     string
	Collection string
	DocID      string
	// OrderBy names a field to sort ascending by. Ties and queries without OrderBy
	// sort by id, numeric ids by value before any other id.
	OrderBy string
}

// Ref returns the reference of document id inside the queried collection.
func (q Query) Ref(id string) Ref {
	return Ref{TeamID: q.TeamID, Collection: q.Collection, DocID: id}
}

// DataFunc receives every snapshot of a subscription.
type DataFunc func([]Document)

// ErrorFunc receives subscription failures.
type ErrorFunc func(error)

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// UpdateFunc computes the patch to merge into the current fields of a document.
// It may run more than once and must not call back into the store.
type UpdateFunc func(current Fields) (Fields, error)

// Backend is implemented by every document store.
type Backend interface {
	Subscribe(ctx context.Context, q Query, onData DataFunc, onError ErrorFunc) Unsubscribe
	Get(ctx context.Context, ref Ref) (*Document, error)
	List(ctx context.Context, q Query) ([]Document, error)
	Save(ctx context.Context, ref Ref, fields Fields) error
	Create(ctx context.Context, ref Ref, fields Fields) error
	Update(ctx context.Context, ref Ref, fn UpdateFunc) error
	Delete(ctx context.Context, ref Ref) error
	Ping(ctx context.Context) error
}

// sortedKeys returns the field names of f in a stable order.
func sortedKeys(f Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compareIDs orders numeric document ids by value, ahead of every other id, and
// the rest as strings.
func compareIDs(a, b string) int {
	an, aErr := strconv.ParseInt(a, 10, 64)
	bn, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(an, bn)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return cmp.Compare(a, b)
}

// Clone deep-copies f. Values are expected to be JSON-shaped.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Fields:
		return t.Clone()
	case map[string]interface{}:
		return map[string]interface{}(Fields(t).Clone())
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
