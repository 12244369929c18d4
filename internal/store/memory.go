package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process. It backs tests and the offline seed mode.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Fields // feedKey(team, collection) -> doc id -> fields
	feed *LocalFeed
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]Fields),
		feed: NewLocalFeed(),
	}
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query, onData DataFunc, onError ErrorFunc) Unsubscribe {
	load := func(ctx context.Context) ([]Document, error) {
		if q.DocID == "" {
			return s.List(ctx, q)
		}
		doc, err := s.Get(ctx, q.Ref(q.DocID))
		if err == ErrNotFound {
			return []Document{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []Document{*doc}, nil
	}
	return watch(ctx, s.feed, q, load, onData, onError)
}

func (s *MemoryStore) Get(_ context.Context, ref Ref) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.docs[feedKey(ref.TeamID, ref.Collection)][ref.DocID]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: ref.DocID, Fields: fields.Clone()}, nil
}

func (s *MemoryStore) List(_ context.Context, q Query) ([]Document, error) {
	s.mu.RLock()
	coll := s.docs[feedKey(q.TeamID, q.Collection)]
	docs := make([]Document, 0, len(coll))
	for id, fields := range coll {
		docs = append(docs, Document{ID: id, Fields: fields.Clone()})
	}
	s.mu.RUnlock()

	sortDocuments(docs, q.OrderBy)
	return docs, nil
}

func (s *MemoryStore) Save(ctx context.Context, ref Ref, fields Fields) error {
	if ref.DocID == "" {
		return fmt.Errorf("save %s: empty document id", ref.Collection)
	}

	s.mu.Lock()
	key := feedKey(ref.TeamID, ref.Collection)
	if s.docs[key] == nil {
		s.docs[key] = make(map[string]Fields)
	}
	current := s.docs[key][ref.DocID]
	if current == nil {
		current = make(Fields, len(fields))
	}
	for k, v := range fields.Clone() {
		current[k] = v
	}
	s.docs[key][ref.DocID] = current
	s.mu.Unlock()

	return s.feed.Publish(ctx, ref.TeamID, ref.Collection)
}

func (s *MemoryStore) Create(ctx context.Context, ref Ref, fields Fields) error {
	if ref.DocID == "" {
		return fmt.Errorf("create %s: empty document id", ref.Collection)
	}

	s.mu.Lock()
	key := feedKey(ref.TeamID, ref.Collection)
	if _, ok := s.docs[key][ref.DocID]; ok {
		s.mu.Unlock()
		return ErrExists
	}
	if s.docs[key] == nil {
		s.docs[key] = make(map[string]Fields)
	}
	s.docs[key][ref.DocID] = fields.Clone()
	s.mu.Unlock()

	return s.feed.Publish(ctx, ref.TeamID, ref.Collection)
}

func (s *MemoryStore) Update(ctx context.Context, ref Ref, fn UpdateFunc) error {
	s.mu.Lock()
	key := feedKey(ref.TeamID, ref.Collection)
	current, ok := s.docs[key][ref.DocID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	patch, err := fn(current.Clone())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for k, v := range patch.Clone() {
		current[k] = v
	}
	s.mu.Unlock()

	if len(patch) == 0 {
		return nil
	}
	return s.feed.Publish(ctx, ref.TeamID, ref.Collection)
}

func (s *MemoryStore) Delete(ctx context.Context, ref Ref) error {
	s.mu.Lock()
	key := feedKey(ref.TeamID, ref.Collection)
	_, existed := s.docs[key][ref.DocID]
	delete(s.docs[key], ref.DocID)
	s.mu.Unlock()

	if !existed {
		return nil
	}
	return s.feed.Publish(ctx, ref.TeamID, ref.Collection)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// sortDocuments orders docs by the given field, then by id.
func sortDocuments(docs []Document, field string) {
	sort.SliceStable(docs, func(i, j int) bool {
		if field != "" {
			if c := compareValues(docs[i].Fields[field], docs[j].Fields[field]); c != 0 {
				return c < 0
			}
		}
		return compareIDs(docs[i].ID, docs[j].ID) < 0
	})
}

func compareValues(a, b interface{}) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
