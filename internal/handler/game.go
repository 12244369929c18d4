package handler

import (
	"net/http"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/service"
)

// GameHandler meters the daily mini-game attempts of the logged-in player.
type GameHandler struct {
	games *service.GameService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games *service.GameService) *GameHandler {
	return &GameHandler{games: games}
}

// Status handles GET /v1/games/{game}/attempts.
func (h *GameHandler) Status(w http.ResponseWriter, r *http.Request) {
	playerID, _, err := actor(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	a, err := h.games.Status(r.Context(), auth.TeamFromContext(r.Context()), playerID, chiParam(r, "game"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, a)
}

// Consume handles POST /v1/games/{game}/attempts.
func (h *GameHandler) Consume(w http.ResponseWriter, r *http.Request) {
	playerID, _, err := actor(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	a, err := h.games.Consume(r.Context(), auth.TeamFromContext(r.Context()), playerID, chiParam(r, "game"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, a)
}
