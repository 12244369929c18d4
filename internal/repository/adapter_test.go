package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/store"
)

func newTestAdapter() *Adapter {
	return NewAdapter(store.NewMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testMatch() domain.Match {
	return domain.Match{
		ID:       12,
		Date:     "2026-03-14",
		Status:   domain.MatchScheduled,
		CourtFee: 100000,
		PlayerStatuses: []domain.PlayerMatchStatus{
			domain.NewPlayerMatchStatus(1),
		},
	}
}

func TestAdapter_SaveAndGet(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()

	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionMatches, testMatch()))

	got, err := Get[domain.Match](ctx, a, "t1", domain.CollectionMatches, "12")
	require.NoError(t, err)
	assert.Equal(t, 100000.0, got.CourtFee)
	require.Len(t, got.PlayerStatuses, 1)
	assert.Equal(t, domain.AttendancePending, got.PlayerStatuses[0].Attendance)
}

func TestAdapter_SaveRejectsInvalidEntity(t *testing.T) {
	a := newTestAdapter()
	m := testMatch()
	m.Date = "14/03/2026"

	err := a.SaveDocument(context.Background(), "t1", domain.CollectionMatches, m)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, "VALIDATION_ERROR"))

	_, err = Get[domain.Match](context.Background(), a, "t1", domain.CollectionMatches, "12")
	assert.True(t, domain.IsCode(err, "NOT_FOUND"))
}

func TestAdapter_SavePreservesUnencodedFields(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()

	p := domain.Player{ID: 4, Name: "Ana", Role: domain.RolePlayer, PINHash: "hash"}
	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionPlayers, p))

	p.PINHash = ""
	p.Nickname = "La Zurda"
	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionPlayers, p))

	got, err := Get[domain.Player](ctx, a, "t1", domain.CollectionPlayers, "4")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PINHash)
	assert.Equal(t, "La Zurda", got.Nickname)
}

func TestAdapter_UpdateWritesOnlyNamedFields(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()
	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionMatches, testMatch()))

	_, err := Update(ctx, a, "t1", domain.CollectionMatches, "12", func(m *domain.Match) ([]string, error) {
		m.VotingOpen = true
		m.CourtFee = 1
		return []string{domain.FieldVotingOpen}, nil
	})
	require.NoError(t, err)

	got, err := Get[domain.Match](ctx, a, "t1", domain.CollectionMatches, "12")
	require.NoError(t, err)
	assert.True(t, got.VotingOpen)
	assert.Equal(t, 100000.0, got.CourtFee, "unnamed fields are not written")
}

func TestAdapter_UpdateMissingDocument(t *testing.T) {
	a := newTestAdapter()
	_, err := Update(context.Background(), a, "t1", domain.CollectionMatches, "99", func(m *domain.Match) ([]string, error) {
		return nil, nil
	})
	assert.True(t, domain.IsCode(err, "NOT_FOUND"))
}

func TestAdapter_UpdatePassesDomainErrors(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()
	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionMatches, testMatch()))

	_, err := Update(ctx, a, "t1", domain.CollectionMatches, "12", func(m *domain.Match) ([]string, error) {
		return nil, domain.ErrConflict("voting closed")
	})
	assert.True(t, domain.IsCode(err, "CONFLICT"))
}

func TestAdapter_CreateNextSkipsTakenIDs(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()
	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionMatches, testMatch()))

	m, err := CreateNext(ctx, a, "t1", domain.CollectionMatches, 12, func(id int64) domain.Match {
		m := testMatch()
		m.ID = id
		m.CourtFee = 5
		return m
	})
	require.NoError(t, err)
	assert.Equal(t, int64(13), m.ID)

	kept, err := Get[domain.Match](ctx, a, "t1", domain.CollectionMatches, "12")
	require.NoError(t, err)
	assert.Equal(t, 100000.0, kept.CourtFee, "the taken id is not overwritten")

	err = a.CreateDocument(ctx, "t1", domain.CollectionMatches, m)
	assert.True(t, domain.IsCode(err, "CONFLICT"))
}

func TestAdapter_ReadOnlyWritesAreOffline(t *testing.T) {
	a := NewAdapter(store.NewReadOnly(store.NewMemoryStore()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := a.SaveDocument(context.Background(), "t1", domain.CollectionMatches, testMatch())
	assert.True(t, domain.IsCode(err, "OFFLINE"))
}

func TestAdapter_Messages(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()
	a.now = func() time.Time { return time.UnixMilli(5000) }

	got := make(chan []domain.ChatMessage, 8)
	unsub := a.SubscribeToMessages(ctx, "t1", 12, func(msgs []domain.ChatMessage) { got <- msgs }, func(err error) {
		t.Errorf("subscription error: %v", err)
	})
	defer unsub()
	assert.Empty(t, <-got)

	later, err := a.AddMessage(ctx, "t1", 12, domain.ChatMessage{PlayerID: 1, Text: "segundo", Timestamp: 9000})
	require.NoError(t, err)
	<-got
	first, err := a.AddMessage(ctx, "t1", 12, domain.ChatMessage{PlayerID: 2, Text: "primero"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, int64(5000), first.Timestamp)

	msgs := <-got
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, later.ID, msgs[1].ID)

	reacted, err := a.ToggleReaction(ctx, "t1", 12, first.ID, "🔥", 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, reacted.Reactions["🔥"])
	<-got

	require.NoError(t, a.DeleteMessage(ctx, "t1", 12, later.ID))
	msgs = <-got
	require.Len(t, msgs, 1)
	assert.Equal(t, []int64{3}, msgs[0].Reactions["🔥"])
}

func TestAdapter_SingletonSubscription(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()

	got := make(chan []domain.AppSettings, 4)
	unsub := Subscribe(ctx, a, "t1", domain.CollectionSettings, domain.AppSettingsDocID,
		func(s []domain.AppSettings) { got <- s },
		func(err error) { t.Errorf("subscription error: %v", err) })
	defer unsub()

	assert.Empty(t, <-got)
	require.NoError(t, a.SaveDocument(ctx, "t1", domain.CollectionSettings, domain.DefaultAppSettings()))
	settings := <-got
	require.Len(t, settings, 1)
	assert.Equal(t, 3, settings[0].MaxDailyGameAttempts)
}
