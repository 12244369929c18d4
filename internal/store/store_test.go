package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsheet/platform/internal/domain"
)

// collector records every snapshot a subscription delivers.
type collector struct {
	ch chan []Document
}

func newCollector() *collector {
	return &collector{ch: make(chan []Document, 16)}
}

func (c *collector) onData(docs []Document) { c.ch <- docs }

func (c *collector) next(t *testing.T) []Document {
	t.Helper()
	select {
	case docs := <-c.ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func failOnError(t *testing.T) ErrorFunc {
	return func(err error) { t.Errorf("unexpected subscription error: %v", err) }
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestMemoryStore_SubscribePushesInitialState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: "players", DocID: "2"}, Fields{"name": "Beto"}))
	require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: "players", DocID: "1"}, Fields{"name": "Ana"}))

	c := newCollector()
	unsub := s.Subscribe(ctx, Query{TeamID: "t1", Collection: "players"}, c.onData, failOnError(t))
	defer unsub()

	assert.Equal(t, []string{"1", "2"}, ids(c.next(t)))
}

func TestMemoryStore_SubscribePushesFullArrayOnChange(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c := newCollector()
	unsub := s.Subscribe(ctx, Query{TeamID: "t1", Collection: "players"}, c.onData, failOnError(t))
	defer unsub()
	assert.Empty(t, c.next(t))

	require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: "players", DocID: "1"}, Fields{"name": "Ana"}))
	assert.Equal(t, []string{"1"}, ids(c.next(t)))

	require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: "players", DocID: "2"}, Fields{"name": "Beto"}))
	assert.Equal(t, []string{"1", "2"}, ids(c.next(t)))

	require.NoError(t, s.Delete(ctx, Ref{TeamID: "t1", Collection: "players", DocID: "1"}))
	assert.Equal(t, []string{"2"}, ids(c.next(t)))
}

func TestMemoryStore_SingletonSubscription(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	q := Query{TeamID: "t1", Collection: "settings", DocID: "appSettings"}

	c := newCollector()
	unsub := s.Subscribe(ctx, q, c.onData, failOnError(t))
	defer unsub()

	assert.Empty(t, c.next(t), "missing singleton pushes an empty array")

	require.NoError(t, s.Save(ctx, q.Ref("appSettings"), Fields{"maxDailyGameAttempts": 3}))
	docs := c.next(t)
	require.Len(t, docs, 1)
	assert.Equal(t, "appSettings", docs[0].ID)
}

func TestMemoryStore_TeamsAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: "players", DocID: "1"}, Fields{"name": "Ana"}))

	docs, err := s.List(ctx, Query{TeamID: "t2", Collection: "players"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_SaveMergesTopLevelFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := Ref{TeamID: "t1", Collection: "matches", DocID: "7"}

	require.NoError(t, s.Save(ctx, ref, Fields{"date": "2026-03-14", "courtFee": 100000.0}))
	require.NoError(t, s.Save(ctx, ref, Fields{"courtFee": 90000.0}))

	doc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", doc.Fields["date"])
	assert.Equal(t, 90000.0, doc.Fields["courtFee"])
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := Ref{TeamID: "t1", Collection: "matches", DocID: "7"}
	require.NoError(t, s.Save(ctx, ref, Fields{"logistics": map[string]interface{}{"ballBringerId": 3.0}}))

	doc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	doc.Fields["logistics"].(map[string]interface{})["ballBringerId"] = 9.0

	again, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 3.0, again.Fields["logistics"].(map[string]interface{})["ballBringerId"])
}

func TestMemoryStore_UpdateIsAtomic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := Ref{TeamID: "t1", Collection: "matches", DocID: "7"}
	require.NoError(t, s.Save(ctx, ref, Fields{"count": 0.0}))

	const writers = 50
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			done <- s.Update(ctx, ref, func(cur Fields) (Fields, error) {
				n, _ := cur["count"].(float64)
				return Fields{"count": n + 1}, nil
			})
		}()
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-done)
	}

	doc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, float64(writers), doc.Fields["count"])
}

func TestMemoryStore_UpdateErrors(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := Ref{TeamID: "t1", Collection: "matches", DocID: "7"}

	err := s.Update(ctx, ref, func(Fields) (Fields, error) { return Fields{}, nil })
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, ref, Fields{"status": "SCHEDULED"}))
	boom := errors.New("rule violated")
	err = s.Update(ctx, ref, func(Fields) (Fields, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	doc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "SCHEDULED", doc.Fields["status"])
}

func TestMemoryStore_ListOrderBy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	coll := "matches/7/messages"
	require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: coll, DocID: "a"}, Fields{"timestamp": 300.0}))
	require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: coll, DocID: "b"}, Fields{"timestamp": 100.0}))
	require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: coll, DocID: "c"}, Fields{"timestamp": 200.0}))

	docs, err := s.List(ctx, Query{TeamID: "t1", Collection: coll, OrderBy: "timestamp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(docs))
}

func TestMemoryStore_NumericIDsSortByValue(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"10", "2", "v1", "1", "33"} {
		require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: "players", DocID: id}, Fields{"name": id}))
	}

	docs, err := s.List(ctx, Query{TeamID: "t1", Collection: "players"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "10", "33", "v1"}, ids(docs))

	c := newCollector()
	unsub := s.Subscribe(ctx, Query{TeamID: "t1", Collection: "players"}, c.onData, failOnError(t))
	defer unsub()
	assert.Equal(t, []string{"1", "2", "10", "33", "v1"}, ids(c.next(t)))
}

func TestMemoryStore_CreateRejectsTakenID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ref := Ref{TeamID: "t1", Collection: "matches", DocID: "1"}

	require.NoError(t, s.Create(ctx, ref, Fields{"courtFee": 100.0}))
	err := s.Create(ctx, ref, Fields{"courtFee": 500.0})
	assert.ErrorIs(t, err, ErrExists)

	doc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 100.0, doc.Fields["courtFee"], "first write kept")
}

func TestMemoryStore_UnsubscribeStopsDelivery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c := newCollector()
	unsub := s.Subscribe(ctx, Query{TeamID: "t1", Collection: "venues"}, c.onData, failOnError(t))
	c.next(t)
	unsub()
	unsub()

	require.NoError(t, s.Save(ctx, Ref{TeamID: "t1", Collection: "venues", DocID: "v1"}, Fields{"name": "Club"}))
	select {
	case docs := <-c.ch:
		t.Fatalf("unexpected snapshot after unsubscribe: %v", docs)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReadOnly_RejectsWrites(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	ref := Ref{TeamID: "t1", Collection: "players", DocID: "1"}
	require.NoError(t, mem.Save(ctx, ref, Fields{"name": "Ana"}))

	ro := NewReadOnly(mem)

	err := ro.Save(ctx, ref, Fields{"name": "Beto"})
	assert.True(t, domain.IsCode(err, "OFFLINE"))
	assert.True(t, domain.IsCode(ro.Delete(ctx, ref), "OFFLINE"))
	assert.True(t, domain.IsCode(ro.Update(ctx, ref, nil), "OFFLINE"))
	assert.True(t, domain.IsCode(ro.Create(ctx, Ref{TeamID: "t1", Collection: "players", DocID: "2"}, Fields{}), "OFFLINE"))
	assert.True(t, domain.IsCode(ro.Ping(ctx), "OFFLINE"))

	doc, err := ro.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Ana", doc.Fields["name"])
}

func TestLocalFeed_WatchAndStop(t *testing.T) {
	f := NewLocalFeed()
	calls := 0
	stop, err := f.Watch("t1", "players", func() { calls++ })
	require.NoError(t, err)

	require.NoError(t, f.Publish(context.Background(), "t1", "players"))
	require.NoError(t, f.Publish(context.Background(), "t1", "matches"))
	stop()
	require.NoError(t, f.Publish(context.Background(), "t1", "players"))

	assert.Equal(t, 1, calls)
}

func TestNATSFeed_Subject(t *testing.T) {
	f := NewNATSFeed(nil, "teamsheet.changes", nil)

	assert.Equal(t, "teamsheet.changes.los-pibes.players", f.Subject("los-pibes", "players"))
	assert.Equal(t, "teamsheet.changes.los-pibes.matches.7.messages", f.Subject("los-pibes", "matches/7/messages"))
	assert.Equal(t, "teamsheet.changes._root.teams", f.Subject("", "teams"))
	assert.Equal(t, "teamsheet.changes.a_b.players", f.Subject("a.b", "players"))
}
