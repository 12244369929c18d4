package handler

import (
	"net/http"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/service"
)

// MatchHandler handles match scheduling and the per-match mutations.
type MatchHandler struct {
	matches *service.MatchService
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(matches *service.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// List handles GET /v1/matches.
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matches.List(r.Context(), auth.TeamFromContext(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, matches)
}

// Get handles GET /v1/matches/{matchID}.
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.Get(r.Context(), auth.TeamFromContext(r.Context()), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

// Create handles POST /v1/matches.
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.ScheduleInput
	if err := decode(r, &in); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.CreateMatch(r.Context(), auth.TeamFromContext(r.Context()), in)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, m)
}

// Update handles PUT /v1/matches/{matchID}.
func (h *MatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	var in service.ScheduleInput
	if err := decode(r, &in); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.UpdateMatch(r.Context(), auth.TeamFromContext(r.Context()), id, in)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

// Delete handles DELETE /v1/matches/{matchID}.
func (h *MatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req confirmRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if err := h.matches.DeleteMatch(r.Context(), auth.TeamFromContext(r.Context()), id, req.Confirmation); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// matchAndPlayer parses {matchID} and {playerID}.
func matchAndPlayer(r *http.Request) (int64, int64, error) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		return 0, 0, err
	}
	playerID, err := idParam(r, "playerID")
	if err != nil {
		return 0, 0, err
	}
	return matchID, playerID, nil
}

type attendanceRequest struct {
	Attendance domain.Attendance `json:"attendance"`
}

// SetAttendance handles PUT /v1/matches/{matchID}/attendance/{playerID}. Players
// answer for themselves; managers may answer for anyone.
func (h *MatchHandler) SetAttendance(w http.ResponseWriter, r *http.Request) {
	matchID, playerID, err := matchAndPlayer(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	self, role, err := actor(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if self != playerID && !role.CanManage() {
		RespondError(w, domain.ErrForbidden("cannot answer for another player"))
		return
	}

	var req attendanceRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.SetAttendance(r.Context(), auth.TeamFromContext(r.Context()), matchID, playerID, req.Attendance)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

type paymentRequest struct {
	Amount float64 `json:"amount"`
}

// RecordPayment handles PUT /v1/matches/{matchID}/payments/{playerID}.
func (h *MatchHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	matchID, playerID, err := matchAndPlayer(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.RecordPayment(r.Context(), auth.TeamFromContext(r.Context()), matchID, playerID, req.Amount)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

// UpdateStats handles PUT /v1/matches/{matchID}/stats/{playerID}.
func (h *MatchHandler) UpdateStats(w http.ResponseWriter, r *http.Request) {
	matchID, playerID, err := matchAndPlayer(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var in service.StatsInput
	if err := decode(r, &in); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.UpdatePlayerStats(r.Context(), auth.TeamFromContext(r.Context()), matchID, playerID, in)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

type ratingsRequest struct {
	Scores map[int64]float64 `json:"scores"`
}

// SubmitRatings handles POST /v1/matches/{matchID}/ratings. The rater is the
// logged-in player.
func (h *MatchHandler) SubmitRatings(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	rater, _, err := actor(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req ratingsRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.SubmitRatings(r.Context(), auth.TeamFromContext(r.Context()), matchID, rater, req.Scores)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

type votingRequest struct {
	Open bool `json:"open"`
}

// SetVoting handles PUT /v1/matches/{matchID}/voting.
func (h *MatchHandler) SetVoting(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req votingRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.SetVotingOpen(r.Context(), auth.TeamFromContext(r.Context()), matchID, req.Open)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

type statusRequest struct {
	Status domain.MatchStatus `json:"status"`
}

// SetStatus handles PUT /v1/matches/{matchID}/status.
func (h *MatchHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.SetStatus(r.Context(), auth.TeamFromContext(r.Context()), matchID, req.Status)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

type scoreRequest struct {
	GoalsFor     int `json:"goalsFor"`
	GoalsAgainst int `json:"goalsAgainst"`
}

// SetScore handles PUT /v1/matches/{matchID}/score.
func (h *MatchHandler) SetScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req scoreRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.SetScore(r.Context(), auth.TeamFromContext(r.Context()), matchID, req.GoalsFor, req.GoalsAgainst)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

// SetLogistics handles PUT /v1/matches/{matchID}/logistics.
func (h *MatchHandler) SetLogistics(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	var l domain.Logistics
	if err := decode(r, &l); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.matches.SetLogistics(r.Context(), auth.TeamFromContext(r.Context()), matchID, l)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

// AddThirdHalfItem handles POST /v1/matches/{matchID}/third-half. Players log
// their own consumption; managers may log for anyone.
func (h *MatchHandler) AddThirdHalfItem(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	self, role, err := actor(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var item domain.ConsumptionItem
	if err := decode(r, &item); err != nil {
		RespondError(w, err)
		return
	}
	if item.PlayerID == 0 {
		item.PlayerID = self
	}
	if item.PlayerID != self && !role.CanManage() {
		RespondError(w, domain.ErrForbidden("cannot log consumption for another player"))
		return
	}
	m, err := h.matches.AddThirdHalfItem(r.Context(), auth.TeamFromContext(r.Context()), matchID, item)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, m)
}
