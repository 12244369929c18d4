package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TicketTTL bounds how long a WebSocket ticket may wait before the handshake.
const TicketTTL = time.Minute

// Ticket is a short-lived scoped credential for the WebSocket handshake, where
// browsers cannot send an Authorization header.
type Ticket struct {
	TeamID   string   `json:"teamId"`
	PlayerID int64    `json:"playerId,omitempty"`
	Role     string   `json:"role,omitempty"`
	Scopes   []string `json:"scopes"`
	Exp      int64    `json:"exp"`
	Iat      int64    `json:"iat"`
	Jti      string   `json:"jti"`
}

// Allows reports whether the ticket grants scope.
func (t Ticket) Allows(scope string) bool {
	return slices.Contains(t.Scopes, scope)
}

// Claims converts the ticket into request claims.
func (t Ticket) Claims() *Claims {
	c := &Claims{Realm: RealmTeam, TeamID: t.TeamID, PlayerID: t.PlayerID, Role: t.Role}
	if t.PlayerID != 0 {
		c.Realm = RealmPlayer
	}
	c.Subject = t.Jti
	return c
}

// TicketManager issues and verifies HMAC-SHA256 tickets.
type TicketManager struct {
	secret []byte
	now    func() time.Time
}

// NewTicketManager creates a ticket manager.
func NewTicketManager(secret string) *TicketManager {
	return &TicketManager{secret: []byte(secret), now: time.Now}
}

// Issue creates a ticket for the holder of claims.
// Format: base64(payload).base64(signature)
func (m *TicketManager) Issue(claims *Claims, scopes []string) (string, error) {
	now := m.now()
	t := Ticket{
		TeamID:   claims.TeamID,
		PlayerID: claims.PlayerID,
		Role:     claims.Role,
		Scopes:   scopes,
		Exp:      now.Add(TicketTTL).Unix(),
		Iat:      now.Unix(),
		Jti:      uuid.New().String(),
	}

	payloadJSON, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal ticket: %w", err)
	}

	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadJSON)
	sigB64 := base64.RawURLEncoding.EncodeToString(m.sign(payloadB64))
	return payloadB64 + "." + sigB64, nil
}

// Validate verifies and decodes a ticket.
func (m *TicketManager) Validate(s string) (*Ticket, error) {
	payloadB64, sigB64, ok := strings.Cut(s, ".")
	if !ok {
		return nil, fmt.Errorf("invalid ticket format")
	}

	actualSig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if !hmac.Equal(m.sign(payloadB64), actualSig) {
		return nil, fmt.Errorf("invalid signature")
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var t Ticket
	if err := json.Unmarshal(payloadJSON, &t); err != nil {
		return nil, fmt.Errorf("unmarshal ticket: %w", err)
	}

	if m.now().Unix() > t.Exp {
		return nil, fmt.Errorf("ticket expired")
	}
	return &t, nil
}

func (m *TicketManager) sign(data string) []byte {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
