package handler

import (
	"net/http"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/service"
)

// SettingsHandler handles the team settings singleton.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get handles GET /v1/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context(), auth.TeamFromContext(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, s)
}

// Save handles PUT /v1/settings.
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var s domain.AppSettings
	if err := decode(r, &s); err != nil {
		RespondError(w, err)
		return
	}
	if err := h.settings.Save(r.Context(), auth.TeamFromContext(r.Context()), s); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, s)
}
