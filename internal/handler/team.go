package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/mirror"
	"github.com/teamsheet/platform/internal/service"
)

// TeamAdminHandler lets the super-tenant manage teams.
type TeamAdminHandler struct {
	tenants  *service.TenantService
	registry *mirror.Registry
}

// NewTeamAdminHandler creates a new TeamAdminHandler.
func NewTeamAdminHandler(tenants *service.TenantService, registry *mirror.Registry) *TeamAdminHandler {
	return &TeamAdminHandler{tenants: tenants, registry: registry}
}

// List handles GET /v1/admin/teams.
func (h *TeamAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.tenants.List(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, teams)
}

type createTeamRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Create handles POST /v1/admin/teams.
func (h *TeamAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	team, err := h.tenants.Create(r.Context(), req.Name, req.Code)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, team)
}

type teamStatusRequest struct {
	Status domain.TeamStatus `json:"status"`
}

// SetStatus handles PUT /v1/admin/teams/{teamID}/status. Deactivating a team
// closes its mirror.
func (h *TeamAdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req teamStatusRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	team, err := h.tenants.SetStatus(r.Context(), chi.URLParam(r, "teamID"), req.Status)
	if err != nil {
		RespondError(w, err)
		return
	}
	if team.Status == domain.TeamInactive {
		h.registry.Drop(team.ID)
	}
	RespondJSON(w, http.StatusOK, team)
}
