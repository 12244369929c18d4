package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps team data under teams/{team}/{collection}/{doc} and uses the
// native snapshot listeners for subscriptions.
type FirestoreStore struct {
	client *firestore.Client
	logger *slog.Logger
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client, logger *slog.Logger) *FirestoreStore {
	return &FirestoreStore{client: client, logger: logger}
}

func (s *FirestoreStore) collection(teamID, collection string) *firestore.CollectionRef {
	if teamID == "" {
		return s.client.Collection(collection)
	}
	return s.client.Collection(path.Join("teams", teamID, collection))
}

func (s *FirestoreStore) doc(ref Ref) *firestore.DocumentRef {
	return s.collection(ref.TeamID, ref.Collection).Doc(ref.DocID)
}

// Subscribe listens with Firestore snapshots. Cancelling the returned function
// cancels the listener context; Stop is not used because it is not safe to call
// concurrently with Next.
func (s *FirestoreStore) Subscribe(ctx context.Context, q Query, onData DataFunc, onError ErrorFunc) Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() { once.Do(cancel) }

	if q.DocID != "" {
		go s.listenDocument(ctx, q.Ref(q.DocID), onData, onError)
	} else {
		go s.listenQuery(ctx, q, onData, onError)
	}
	return unsubscribe
}

func (s *FirestoreStore) listenQuery(ctx context.Context, q Query, onData DataFunc, onError ErrorFunc) {
	query := s.collection(q.TeamID, q.Collection).Query
	if q.OrderBy != "" {
		query = query.OrderBy(q.OrderBy, firestore.Asc)
	}
	it := query.Snapshots(ctx)

	for {
		qs, err := it.Next()
		if err != nil {
			if ctx.Err() == nil && status.Code(err) != codes.Canceled {
				onError(fmt.Errorf("listen %s: %w", q.Collection, err))
			}
			return
		}
		snaps, err := qs.Documents.GetAll()
		if err != nil {
			if ctx.Err() == nil {
				onError(fmt.Errorf("read snapshot %s: %w", q.Collection, err))
			}
			return
		}
		onData(toDocuments(snaps, q.OrderBy))
	}
}

func (s *FirestoreStore) listenDocument(ctx context.Context, ref Ref, onData DataFunc, onError ErrorFunc) {
	it := s.doc(ref).Snapshots(ctx)

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() == nil && status.Code(err) != codes.Canceled {
				onError(fmt.Errorf("listen %s/%s: %w", ref.Collection, ref.DocID, err))
			}
			return
		}
		if !snap.Exists() {
			onData([]Document{})
			continue
		}
		onData([]Document{{ID: snap.Ref.ID, Fields: snap.Data()}})
	}
}

func (s *FirestoreStore) Get(ctx context.Context, ref Ref) (*Document, error) {
	snap, err := s.doc(ref).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil
}

func (s *FirestoreStore) List(ctx context.Context, q Query) ([]Document, error) {
	query := s.collection(q.TeamID, q.Collection).Query
	if q.OrderBy != "" {
		query = query.OrderBy(q.OrderBy, firestore.Asc)
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return toDocuments(snaps, q.OrderBy), nil
}

// toDocuments converts snapshots. Firestore orders document ids as strings, so
// unordered queries are re-sorted to put numeric ids in value order.
func toDocuments(snaps []*firestore.DocumentSnapshot, orderBy string) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	if orderBy == "" {
		sortDocuments(docs, "")
	}
	return docs
}

// Save merges fields at the top level: each named field is replaced, others are kept.
func (s *FirestoreStore) Save(ctx context.Context, ref Ref, fields Fields) error {
	if ref.DocID == "" {
		return fmt.Errorf("save %s: empty document id", ref.Collection)
	}
	if len(fields) == 0 {
		return nil
	}
	if _, err := s.doc(ref).Set(ctx, map[string]interface{}(fields), mergePaths(fields)); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Create(ctx context.Context, ref Ref, fields Fields) error {
	if ref.DocID == "" {
		return fmt.Errorf("create %s: empty document id", ref.Collection)
	}
	if _, err := s.doc(ref).Create(ctx, map[string]interface{}(fields)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrExists
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Update(ctx context.Context, ref Ref, fn UpdateFunc) error {
	docRef := s.doc(ref)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		patch, err := fn(snap.Data())
		if err != nil {
			return err
		}
		if len(patch) == 0 {
			return nil
		}
		return tx.Set(docRef, map[string]interface{}(patch), mergePaths(patch))
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, ref Ref) error {
	if _, err := s.doc(ref).Delete(ctx); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Ping reads at most one team document.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection("teams").Limit(1).Documents(ctx).Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func mergePaths(fields Fields) firestore.SetOption {
	keys := sortedKeys(fields)
	paths := make([]firestore.FieldPath, 0, len(keys))
	for _, k := range keys {
		paths = append(paths, firestore.FieldPath{k})
	}
	return firestore.Merge(paths...)
}
