package handler

import (
	"net/http"
	"time"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/service"
)

// TimerHandler drives the team's field stopwatch.
type TimerHandler struct {
	timers *service.TimerService
}

// NewTimerHandler creates a new TimerHandler.
func NewTimerHandler(timers *service.TimerService) *TimerHandler {
	return &TimerHandler{timers: timers}
}

// State handles GET /v1/timer.
func (h *TimerHandler) State(w http.ResponseWriter, r *http.Request) {
	s, err := h.timers.State(r.Context(), auth.TeamFromContext(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, s)
}

// Start handles POST /v1/timer/start.
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, err := h.timers.Start(r.Context(), auth.TeamFromContext(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, s)
}

// Pause handles POST /v1/timer/pause.
func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	s, err := h.timers.Pause(r.Context(), auth.TeamFromContext(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, s)
}

type resetRequest struct {
	TargetSec int `json:"targetSec"`
}

// Reset handles POST /v1/timer/reset. A zero target restores the default period.
func (h *TimerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	s, err := h.timers.Reset(r.Context(), auth.TeamFromContext(r.Context()), time.Duration(req.TargetSec)*time.Second)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, s)
}

// SetPreferences handles PUT /v1/timer/preferences.
func (h *TimerHandler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs domain.StopwatchPreferences
	if err := decode(r, &prefs); err != nil {
		RespondError(w, err)
		return
	}
	s, err := h.timers.SetPreferences(r.Context(), auth.TeamFromContext(r.Context()), prefs)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, s)
}
