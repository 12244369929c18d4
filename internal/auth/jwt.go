package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Realm identifies the JWT authentication realm.
type Realm string

const (
	// RealmTeam is granted by entering the team name. It reads team data.
	RealmTeam Realm = "team"
	// RealmPlayer is granted by a player's PIN and carries the player's role.
	RealmPlayer Realm = "player"
	// RealmAdmin is the super-tenant that manages teams.
	RealmAdmin Realm = "admin"
)

// Claims holds the custom JWT claims for all 3 realms.
type Claims struct {
	jwt.RegisteredClaims
	Realm    Realm  `json:"realm"`
	TeamID   string `json:"teamId,omitempty"`
	PlayerID int64  `json:"playerId,omitempty"`
	Role     string `json:"role,omitempty"` // player realm: PLAYER, CAPTAIN, ADMIN, COACH, STAFF
}

// JWTManager handles token generation and validation for all 3 realms.
type JWTManager struct {
	secret       []byte
	teamExpiry   time.Duration
	playerExpiry time.Duration
	adminExpiry  time.Duration
}

// NewJWTManager creates a JWT manager with realm-specific expiry durations.
func NewJWTManager(secret string, teamExpiry, playerExpiry, adminExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:       []byte(secret),
		teamExpiry:   teamExpiry,
		playerExpiry: playerExpiry,
		adminExpiry:  adminExpiry,
	}
}

// GenerateToken creates a signed JWT for the given realm. playerID and role are
// only meaningful in the player realm.
func (m *JWTManager) GenerateToken(realm Realm, teamID string, playerID int64, role string) (string, error) {
	var (
		expiry  time.Duration
		subject string
	)
	switch realm {
	case RealmTeam:
		expiry, subject = m.teamExpiry, teamID
	case RealmPlayer:
		expiry, subject = m.playerExpiry, strconv.FormatInt(playerID, 10)
	case RealmAdmin:
		expiry, subject = m.adminExpiry, "admin"
	default:
		return "", fmt.Errorf("unknown realm: %s", realm)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
		Realm:    realm,
		TeamID:   teamID,
		PlayerID: playerID,
		Role:     role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT, returning claims if valid.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// ValidateTokenForRealm validates a token and ensures it belongs to one of the
// expected realms.
func (m *JWTManager) ValidateTokenForRealm(tokenString string, expected ...Realm) (*Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	for _, realm := range expected {
		if claims.Realm == realm {
			return claims, nil
		}
	}
	return nil, fmt.Errorf("expected realm %v, got %s", expected, claims.Realm)
}
