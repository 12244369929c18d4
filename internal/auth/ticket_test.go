package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRoundtrip(t *testing.T) {
	mgr := NewTicketManager("ticket-secret")

	s, err := mgr.Issue(&Claims{Realm: RealmPlayer, TeamID: "los-pibes", PlayerID: 3, Role: "PLAYER"}, []string{"matches", "timer"})
	require.NoError(t, err)

	tk, err := mgr.Validate(s)
	require.NoError(t, err)
	assert.Equal(t, "los-pibes", tk.TeamID)
	assert.True(t, tk.Allows("timer"))
	assert.False(t, tk.Allows("players"))

	c := tk.Claims()
	assert.Equal(t, RealmPlayer, c.Realm)
	assert.Equal(t, int64(3), c.PlayerID)
}

func TestTicketInvalidSignature(t *testing.T) {
	s, err := NewTicketManager("secret-1").Issue(&Claims{TeamID: "t"}, nil)
	require.NoError(t, err)

	_, err = NewTicketManager("secret-2").Validate(s)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
}

func TestTicketExpired(t *testing.T) {
	mgr := NewTicketManager("secret")
	now := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return now }

	s, err := mgr.Issue(&Claims{TeamID: "t"}, nil)
	require.NoError(t, err)

	now = now.Add(TicketTTL + time.Second)
	_, err = mgr.Validate(s)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestTicketMalformed(t *testing.T) {
	_, err := NewTicketManager("secret").Validate("no-dot")
	assert.Error(t, err)
}
