package handler

import (
	"net/http"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/service"
)

// ReferenceHandler handles opponents, venues, tournaments, standings photos and
// the team card.
type ReferenceHandler struct {
	refs    *service.ReferenceService
	adapter *repository.Adapter
}

// NewReferenceHandler creates a new ReferenceHandler.
func NewReferenceHandler(refs *service.ReferenceService, adapter *repository.Adapter) *ReferenceHandler {
	return &ReferenceHandler{refs: refs, adapter: adapter}
}

// listOf returns a handler listing one reference collection ordered by id.
func listOf[T any](h *ReferenceHandler, collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := repository.List[T](r.Context(), h.adapter, auth.TeamFromContext(r.Context()), collection, "")
		if err != nil {
			RespondError(w, err)
			return
		}
		RespondJSON(w, http.StatusOK, items)
	}
}

// ListOpponents handles GET /v1/opponents.
func (h *ReferenceHandler) ListOpponents(w http.ResponseWriter, r *http.Request) {
	listOf[domain.Opponent](h, domain.CollectionOpponents)(w, r)
}

// ListVenues handles GET /v1/venues.
func (h *ReferenceHandler) ListVenues(w http.ResponseWriter, r *http.Request) {
	listOf[domain.Venue](h, domain.CollectionVenues)(w, r)
}

// ListTournaments handles GET /v1/tournaments.
func (h *ReferenceHandler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	listOf[domain.Tournament](h, domain.CollectionTournaments)(w, r)
}

// ListStandingsPhotos handles GET /v1/standings-photos.
func (h *ReferenceHandler) ListStandingsPhotos(w http.ResponseWriter, r *http.Request) {
	listOf[domain.StandingsPhoto](h, domain.CollectionStandingsPhotos)(w, r)
}

// SaveOpponent handles POST /v1/opponents.
func (h *ReferenceHandler) SaveOpponent(w http.ResponseWriter, r *http.Request) {
	var o domain.Opponent
	if err := decode(r, &o); err != nil {
		RespondError(w, err)
		return
	}
	saved, err := h.refs.SaveOpponent(r.Context(), auth.TeamFromContext(r.Context()), o)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, saved)
}

// SaveVenue handles POST /v1/venues.
func (h *ReferenceHandler) SaveVenue(w http.ResponseWriter, r *http.Request) {
	var v domain.Venue
	if err := decode(r, &v); err != nil {
		RespondError(w, err)
		return
	}
	saved, err := h.refs.SaveVenue(r.Context(), auth.TeamFromContext(r.Context()), v)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, saved)
}

// SaveTournament handles POST /v1/tournaments.
func (h *ReferenceHandler) SaveTournament(w http.ResponseWriter, r *http.Request) {
	var t domain.Tournament
	if err := decode(r, &t); err != nil {
		RespondError(w, err)
		return
	}
	saved, err := h.refs.SaveTournament(r.Context(), auth.TeamFromContext(r.Context()), t)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, saved)
}

type standingsPhotoRequest struct {
	URL string `json:"url"`
}

// AddStandingsPhoto handles POST /v1/standings-photos.
func (h *ReferenceHandler) AddStandingsPhoto(w http.ResponseWriter, r *http.Request) {
	var req standingsPhotoRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	photo, err := h.refs.AddStandingsPhoto(r.Context(), auth.TeamFromContext(r.Context()), req.URL)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, photo)
}

// Delete handles DELETE /v1/{collection}/{id} for the reference collections.
func (h *ReferenceHandler) Delete(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.refs.Delete(r.Context(), auth.TeamFromContext(r.Context()), collection, chiParam(r, "id")); err != nil {
			RespondError(w, err)
			return
		}
		RespondJSON(w, http.StatusNoContent, nil)
	}
}

// GetTeamInfo handles GET /v1/team.
func (h *ReferenceHandler) GetTeamInfo(w http.ResponseWriter, r *http.Request) {
	info, err := repository.Get[domain.TeamInfo](r.Context(), h.adapter, auth.TeamFromContext(r.Context()), domain.CollectionMyTeam, domain.TeamInfoDocID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, info)
}

// SaveTeamInfo handles PUT /v1/team.
func (h *ReferenceHandler) SaveTeamInfo(w http.ResponseWriter, r *http.Request) {
	var info domain.TeamInfo
	if err := decode(r, &info); err != nil {
		RespondError(w, err)
		return
	}
	if err := h.refs.SaveTeamInfo(r.Context(), auth.TeamFromContext(r.Context()), info); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, info)
}
