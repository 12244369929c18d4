package handler

import (
	"net/http"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/service"
)

// Ticket scopes.
const (
	ScopeSubscribe = "ws:subscribe"
)

// AuthHandler handles team entry, PIN login and WebSocket tickets.
type AuthHandler struct {
	auth    *service.AuthService
	tickets *auth.TicketManager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, tickets *auth.TicketManager) *AuthHandler {
	return &AuthHandler{auth: authSvc, tickets: tickets}
}

type enterTeamRequest struct {
	Name string `json:"name"`
}

// EnterTeam handles POST /v1/auth/team.
func (h *AuthHandler) EnterTeam(w http.ResponseWriter, r *http.Request) {
	var req enterTeamRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	session, err := h.auth.EnterTeam(r.Context(), req.Name, ClientIP(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, session)
}

// Login handles POST /v1/auth/login. The team comes from the team token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := decode(r, &input); err != nil {
		RespondError(w, err)
		return
	}

	session, err := h.auth.Login(r.Context(), auth.TeamFromContext(r.Context()), input, ClientIP(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, session)
}

// Ticket handles POST /v1/auth/ticket and returns a one-minute ticket for the
// WebSocket handshake.
func (h *AuthHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.TeamID == "" {
		RespondError(w, domain.ErrUnauthorized("team session required"))
		return
	}

	ticket, err := h.tickets.Issue(claims, []string{ScopeSubscribe})
	if err != nil {
		RespondError(w, domain.ErrInternal("issue ticket", err))
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"ticket": ticket})
}

// actor returns the player behind a player-realm request.
func actor(r *http.Request) (int64, domain.Role, error) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.PlayerID == 0 {
		return 0, "", domain.ErrUnauthorized("player session required")
	}
	return claims.PlayerID, domain.Role(claims.Role), nil
}
