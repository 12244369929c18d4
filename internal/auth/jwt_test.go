package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTManager() *JWTManager {
	return NewJWTManager("test-secret-key", 30*24*time.Hour, 24*time.Hour, 8*time.Hour)
}

func TestGenerateAndValidateTeamToken(t *testing.T) {
	mgr := newTestJWTManager()

	token, err := mgr.GenerateToken(RealmTeam, "los-pibes", 0, "")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := mgr.ValidateTokenForRealm(token, RealmTeam)
	require.NoError(t, err)
	assert.Equal(t, "los-pibes", claims.Subject)
	assert.Equal(t, "los-pibes", claims.TeamID)
	assert.Equal(t, RealmTeam, claims.Realm)
}

func TestGenerateAndValidatePlayerToken(t *testing.T) {
	mgr := newTestJWTManager()

	token, err := mgr.GenerateToken(RealmPlayer, "los-pibes", 7, "CAPTAIN")
	require.NoError(t, err)

	claims, err := mgr.ValidateTokenForRealm(token, RealmTeam, RealmPlayer)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, int64(7), claims.PlayerID)
	assert.Equal(t, "CAPTAIN", claims.Role)
}

func TestGenerateAndValidateAdminToken(t *testing.T) {
	mgr := newTestJWTManager()

	token, err := mgr.GenerateToken(RealmAdmin, "", 0, "")
	require.NoError(t, err)

	claims, err := mgr.ValidateTokenForRealm(token, RealmAdmin)
	require.NoError(t, err)
	assert.Equal(t, RealmAdmin, claims.Realm)
	assert.Equal(t, "admin", claims.Subject)
}

func TestUnknownRealmRejected(t *testing.T) {
	_, err := newTestJWTManager().GenerateToken(Realm("affiliate"), "x", 0, "")
	assert.Error(t, err)
}

func TestRealmMismatchRejected(t *testing.T) {
	mgr := newTestJWTManager()

	token, err := mgr.GenerateToken(RealmTeam, "los-pibes", 0, "")
	require.NoError(t, err)

	_, err = mgr.ValidateTokenForRealm(token, RealmPlayer, RealmAdmin)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "got team")
}

func TestInvalidSecretRejected(t *testing.T) {
	mgr1 := NewJWTManager("secret-1", time.Hour, time.Hour, time.Hour)
	mgr2 := NewJWTManager("secret-2", time.Hour, time.Hour, time.Hour)

	token, err := mgr1.GenerateToken(RealmPlayer, "t", 1, "PLAYER")
	require.NoError(t, err)

	_, err = mgr2.ValidateToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	mgr := NewJWTManager("secret", time.Millisecond, time.Millisecond, time.Millisecond)

	token, err := mgr.GenerateToken(RealmPlayer, "t", 1, "PLAYER")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}
