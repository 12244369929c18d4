package handler

import (
	"net/http"
	"time"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/mirror"
	"github.com/teamsheet/platform/internal/projection"
)

// projectionTTL bounds how long a computed projection is kept. Keys carry the
// mirror generation and version, so expiry only reclaims memory.
const projectionTTL = 5 * time.Minute

// StatsHandler serves the derived aggregators computed over the team's mirror.
type StatsHandler struct {
	registry *mirror.Registry
	cache    projection.Cache
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(registry *mirror.Registry, cache projection.Cache) *StatsHandler {
	return &StatsHandler{registry: registry, cache: cache}
}

func (h *StatsHandler) state(r *http.Request) (mirror.State, error) {
	return h.registry.State(r.Context(), auth.TeamFromContext(r.Context()))
}

// State handles GET /v1/state and returns the whole mirrored team.
func (h *StatsHandler) State(w http.ResponseWriter, r *http.Request) {
	s, err := h.state(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	s.Players = redact(s.Players)
	RespondJSON(w, http.StatusOK, s)
}

// PlayerStats handles GET /v1/stats/players.
func (h *StatsHandler) PlayerStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.state(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	key := projection.Key("players", s.TeamID, s.Generation, s.Version)
	stats := projection.Cached(r.Context(), h.cache, key, projectionTTL, func() []projection.PlayerStats {
		return projection.GlobalPlayerStats(s.Players, s.Matches)
	})
	RespondJSON(w, http.StatusOK, stats)
}

// Record handles GET /v1/stats/record.
func (h *StatsHandler) Record(w http.ResponseWriter, r *http.Request) {
	s, err := h.state(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, projection.Record(s.Matches))
}

// Treasury handles GET /v1/treasury.
func (h *StatsHandler) Treasury(w http.ResponseWriter, r *http.Request) {
	s, err := h.state(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	key := projection.Key("treasury", s.TeamID, s.Generation, s.Version)
	t := projection.Cached(r.Context(), h.cache, key, projectionTTL, func() projection.Treasury {
		return projection.TreasuryData(s.Matches)
	})
	RespondJSON(w, http.StatusOK, t)
}

// Logistics handles GET /v1/logistics.
func (h *StatsHandler) Logistics(w http.ResponseWriter, r *http.Request) {
	s, err := h.state(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, projection.LogisticsRanking(s.Players, s.Matches))
}

func (h *StatsHandler) match(r *http.Request) (mirror.State, domain.Match, error) {
	id, err := idParam(r, "matchID")
	if err != nil {
		return mirror.State{}, domain.Match{}, err
	}
	s, err := h.state(r)
	if err != nil {
		return mirror.State{}, domain.Match{}, err
	}
	m, ok := s.Match(id)
	if !ok {
		return mirror.State{}, domain.Match{}, domain.ErrNotFound("match", chiParam(r, "matchID"))
	}
	return s, m, nil
}

type paymentsResponse struct {
	FairShare float64                  `json:"fairShare"`
	Eligible  int                      `json:"eligible"`
	Lines     []projection.PaymentLine `json:"lines"`
}

// MatchPayments handles GET /v1/matches/{matchID}/payments.
func (h *StatsHandler) MatchPayments(w http.ResponseWriter, r *http.Request) {
	s, m, err := h.match(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, paymentsResponse{
		FairShare: projection.FairShare(m, s.Players),
		Eligible:  projection.EligibleCount(m, s.Players),
		Lines:     projection.MatchPayments(m, s.Players),
	})
}

// MatchAttendance handles GET /v1/matches/{matchID}/attendance.
func (h *StatsHandler) MatchAttendance(w http.ResponseWriter, r *http.Request) {
	s, m, err := h.match(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, projection.AttendanceSummary(m, s.Players))
}

// ThirdHalf handles GET /v1/matches/{matchID}/third-half.
func (h *StatsHandler) ThirdHalf(w http.ResponseWriter, r *http.Request) {
	_, m, err := h.match(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, projection.ThirdHalfTotals(m))
}
