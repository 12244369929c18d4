package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/store"
)

// Adapter is the typed document store adapter. All team data lives under a team id;
// an empty team id addresses the root collections (teams).
type Adapter struct {
	backend store.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewAdapter creates an Adapter over backend.
func NewAdapter(backend store.Backend, logger *slog.Logger) *Adapter {
	return &Adapter{backend: backend, logger: logger, now: time.Now}
}

// Backend returns the underlying store.
func (a *Adapter) Backend() store.Backend { return a.backend }

// Ping reports whether the backend is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.backend.Ping(ctx); err != nil {
		return mapErr(err, "store", "")
	}
	return nil
}

// SubscribeToCollection pushes the full current array of a collection on every change,
// starting with the initial state. With a non-empty singletonID only that document is
// watched and the array holds zero or one element.
func (a *Adapter) SubscribeToCollection(ctx context.Context, teamID, collection, singletonID string, onData store.DataFunc, onError store.ErrorFunc) store.Unsubscribe {
	q := store.Query{TeamID: teamID, Collection: collection, DocID: singletonID}
	return a.backend.Subscribe(ctx, q, onData, func(err error) {
		onError(mapErr(err, collection, singletonID))
	})
}

// SubscribeToMessages pushes the chat of a match ordered by timestamp.
func (a *Adapter) SubscribeToMessages(ctx context.Context, teamID string, matchID int64, onData func([]domain.ChatMessage), onError store.ErrorFunc) store.Unsubscribe {
	q := store.Query{
		TeamID:     teamID,
		Collection: domain.MessagesCollection(matchID),
		OrderBy:    "timestamp",
	}
	return a.backend.Subscribe(ctx, q, func(docs []store.Document) {
		onData(decodeAll[domain.ChatMessage](a.logger, q.Collection, docs))
	}, func(err error) {
		onError(mapErr(err, "messages", strconv.FormatInt(matchID, 10)))
	})
}

// SaveDocument merge-writes e. Fields that e does not encode are preserved.
func (a *Adapter) SaveDocument(ctx context.Context, teamID, collection string, e Entity) error {
	fields, err := encode(e)
	if err != nil {
		return err
	}
	ref := store.Ref{TeamID: teamID, Collection: collection, DocID: e.DocID()}
	return mapErr(a.backend.Save(ctx, ref, fields), collection, ref.DocID)
}

// CreateDocument writes e only if no document has its id yet. A taken id is a
// conflict.
func (a *Adapter) CreateDocument(ctx context.Context, teamID, collection string, e Entity) error {
	fields, err := encode(e)
	if err != nil {
		return err
	}
	ref := store.Ref{TeamID: teamID, Collection: collection, DocID: e.DocID()}
	return mapErr(a.backend.Create(ctx, ref, fields), collection, ref.DocID)
}

// maxCreateAttempts bounds how many taken ids CreateNext skips.
const maxCreateAttempts = 32

// CreateNext stores the entity build returns for the first free numeric id at or
// above from. Ids claimed by concurrent creates are skipped, never overwritten.
func CreateNext[T Entity](ctx context.Context, a *Adapter, teamID, collection string, from int64, build func(id int64) T) (T, error) {
	var zero T
	for id := from; id < from+maxCreateAttempts; id++ {
		e := build(id)
		fields, err := encode(e)
		if err != nil {
			return zero, err
		}
		ref := store.Ref{TeamID: teamID, Collection: collection, DocID: e.DocID()}
		err = a.backend.Create(ctx, ref, fields)
		if errors.Is(err, store.ErrExists) {
			a.logger.Debug("id taken, trying next", "collection", collection, "doc_id", ref.DocID)
			continue
		}
		if err != nil {
			return zero, mapErr(err, collection, ref.DocID)
		}
		return e, nil
	}
	return zero, domain.ErrConflict(fmt.Sprintf("no free %s id after %d attempts", collection, maxCreateAttempts))
}

// DeleteDocument removes one document. Deleting a missing document is not an error.
func (a *Adapter) DeleteDocument(ctx context.Context, teamID, collection, docID string) error {
	ref := store.Ref{TeamID: teamID, Collection: collection, DocID: docID}
	return mapErr(a.backend.Delete(ctx, ref), collection, docID)
}

// AddMessage stores a chat message, assigning an id and timestamp when missing.
func (a *Adapter) AddMessage(ctx context.Context, teamID string, matchID int64, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = a.now().UnixMilli()
	}
	if err := a.SaveDocument(ctx, teamID, domain.MessagesCollection(matchID), msg); err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

// DeleteMessage removes a chat message.
func (a *Adapter) DeleteMessage(ctx context.Context, teamID string, matchID int64, messageID string) error {
	return a.DeleteDocument(ctx, teamID, domain.MessagesCollection(matchID), messageID)
}

// ToggleReaction adds or removes playerID from the reactors of emoji on a message.
func (a *Adapter) ToggleReaction(ctx context.Context, teamID string, matchID int64, messageID, emoji string, playerID int64) (domain.ChatMessage, error) {
	return Update(ctx, a, teamID, domain.MessagesCollection(matchID), messageID, func(m *domain.ChatMessage) ([]string, error) {
		m.ToggleReaction(emoji, playerID)
		return []string{"reactions"}, nil
	})
}

// Get reads one document as T.
func Get[T any](ctx context.Context, a *Adapter, teamID, collection, id string) (T, error) {
	var zero T
	doc, err := a.backend.Get(ctx, store.Ref{TeamID: teamID, Collection: collection, DocID: id})
	if err != nil {
		return zero, mapErr(err, collection, id)
	}
	return decode[T](*doc)
}

// List reads a collection as T, ordered by orderBy (document id when empty).
// Documents that fail to decode are logged and skipped.
func List[T any](ctx context.Context, a *Adapter, teamID, collection, orderBy string) ([]T, error) {
	docs, err := a.backend.List(ctx, store.Query{TeamID: teamID, Collection: collection, OrderBy: orderBy})
	if err != nil {
		return nil, mapErr(err, collection, "")
	}
	return decodeAll[T](a.logger, collection, docs), nil
}

// Subscribe is the typed form of SubscribeToCollection.
func Subscribe[T any](ctx context.Context, a *Adapter, teamID, collection, singletonID string, onData func([]T), onError store.ErrorFunc) store.Unsubscribe {
	return a.SubscribeToCollection(ctx, teamID, collection, singletonID, func(docs []store.Document) {
		onData(decodeAll[T](a.logger, collection, docs))
	}, onError)
}

// Update atomically applies fn to the stored entity. fn mutates the entity in place
// and names the top-level fields it changed; only those fields are written, each as
// a whole. fn may run more than once.
func Update[T Entity](ctx context.Context, a *Adapter, teamID, collection, id string, fn func(*T) ([]string, error)) (T, error) {
	var result T
	ref := store.Ref{TeamID: teamID, Collection: collection, DocID: id}

	err := a.backend.Update(ctx, ref, func(current store.Fields) (store.Fields, error) {
		entity, err := decode[T](store.Document{ID: id, Fields: current})
		if err != nil {
			return nil, err
		}
		changed, err := fn(&entity)
		if err != nil {
			return nil, err
		}
		fields, err := encode(entity)
		if err != nil {
			return nil, err
		}
		result = entity
		return pick(fields, changed), nil
	})
	if err != nil {
		return result, mapErr(err, collection, id)
	}
	return result, nil
}

func decodeAll[T any](logger *slog.Logger, collection string, docs []store.Document) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode[T](doc)
		if err != nil {
			logger.Warn("skipping undecodable document", "collection", collection, "doc_id", doc.ID, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}
