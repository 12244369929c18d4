package handler

import (
	"net/http"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/service"
)

// PlayerHandler handles roster endpoints.
type PlayerHandler struct {
	roster *service.RosterService
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(roster *service.RosterService) *PlayerHandler {
	return &PlayerHandler{roster: roster}
}

// redact drops credentials before a player leaves the server.
func redact(players []domain.Player) []domain.Player {
	out := make([]domain.Player, len(players))
	for i, p := range players {
		p.PINHash = ""
		out[i] = p
	}
	return out
}

// List handles GET /v1/players.
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.roster.List(r.Context(), auth.TeamFromContext(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, redact(players))
}

// Get handles GET /v1/players/{playerID}.
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "playerID")
	if err != nil {
		RespondError(w, err)
		return
	}
	p, err := h.roster.Get(r.Context(), auth.TeamFromContext(r.Context()), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	p.PINHash = ""
	RespondJSON(w, http.StatusOK, p)
}

// Create handles POST /v1/players.
func (h *PlayerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p domain.Player
	if err := decode(r, &p); err != nil {
		RespondError(w, err)
		return
	}
	p.ID = 0
	h.save(w, r, p, http.StatusCreated)
}

// Update handles PUT /v1/players/{playerID}.
func (h *PlayerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "playerID")
	if err != nil {
		RespondError(w, err)
		return
	}
	var p domain.Player
	if err := decode(r, &p); err != nil {
		RespondError(w, err)
		return
	}
	p.ID = id
	h.save(w, r, p, http.StatusOK)
}

func (h *PlayerHandler) save(w http.ResponseWriter, r *http.Request, p domain.Player, status int) {
	saved, err := h.roster.Save(r.Context(), auth.TeamFromContext(r.Context()), p)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, status, saved)
}

type setPINRequest struct {
	PIN string `json:"pin"`
}

// SetPIN handles PUT /v1/players/{playerID}/pin. Players may change their own PIN;
// managers may reset anyone's.
func (h *PlayerHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "playerID")
	if err != nil {
		RespondError(w, err)
		return
	}
	self, role, err := actor(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if self != id && !role.CanManage() {
		RespondError(w, domain.ErrForbidden("cannot change another player's PIN"))
		return
	}

	var req setPINRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if err := h.roster.SetPIN(r.Context(), auth.TeamFromContext(r.Context()), id, req.PIN); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

type confirmRequest struct {
	Confirmation string `json:"confirmation"`
}

// Delete handles DELETE /v1/players/{playerID}. The body carries the typed phrase.
func (h *PlayerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "playerID")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req confirmRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if err := h.roster.Delete(r.Context(), auth.TeamFromContext(r.Context()), id, req.Confirmation); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}
