package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/projection"
	"github.com/teamsheet/platform/internal/repository"
)

// MatchService applies field-level mutations to match documents. Every change goes
// through repository.Update and rewrites the whole top-level field it touches.
type MatchService struct {
	adapter *repository.Adapter
	events  EventSink
	logger  *slog.Logger
}

// NewMatchService creates a MatchService.
func NewMatchService(adapter *repository.Adapter, events EventSink, logger *slog.Logger) *MatchService {
	return &MatchService{adapter: adapter, events: events, logger: logger}
}

func (s *MatchService) update(ctx context.Context, teamID string, matchID int64, fn func(*domain.Match) ([]string, error)) (domain.Match, error) {
	return repository.Update(ctx, s.adapter, teamID, domain.CollectionMatches, strconv.FormatInt(matchID, 10), fn)
}

func (s *MatchService) emit(ctx context.Context, teamID string, matchID int64, evt domain.EventType, payload interface{}) {
	record(ctx, s.events, s.logger, domain.NewEvent(teamID, domain.AggregateMatch, strconv.FormatInt(matchID, 10), evt, payload))
}

// Get returns one match.
func (s *MatchService) Get(ctx context.Context, teamID string, matchID int64) (domain.Match, error) {
	return repository.Get[domain.Match](ctx, s.adapter, teamID, domain.CollectionMatches, strconv.FormatInt(matchID, 10))
}

// List returns every match ordered by date.
func (s *MatchService) List(ctx context.Context, teamID string) ([]domain.Match, error) {
	return repository.List[domain.Match](ctx, s.adapter, teamID, domain.CollectionMatches, "date")
}

// SetAttendance records a player's answer, creating their status entry if needed.
func (s *MatchService) SetAttendance(ctx context.Context, teamID string, matchID, playerID int64, a domain.Attendance) (domain.Match, error) {
	if !a.Valid() {
		return domain.Match{}, domain.ErrValidation(fmt.Sprintf("invalid attendance: %q", a))
	}
	m, err := s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		st, ok := m.StatusOf(playerID)
		if !ok {
			st = domain.NewPlayerMatchStatus(playerID)
		}
		st.Attendance = a
		m.UpsertStatus(st)
		return []string{domain.FieldPlayerStatuses}, nil
	})
	if err != nil {
		return m, err
	}
	s.emit(ctx, teamID, matchID, domain.EventAttendanceChanged, map[string]interface{}{"playerId": playerID, "attendance": a})
	return m, nil
}

// RecordPayment stores what a player paid and classifies it against the fair share
// of the match as stored at write time.
func (s *MatchService) RecordPayment(ctx context.Context, teamID string, matchID, playerID int64, amount float64) (domain.Match, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.Match{}, domain.ErrValidation(err.Error())
	}
	players, err := repository.List[domain.Player](ctx, s.adapter, teamID, domain.CollectionPlayers, "")
	if err != nil {
		return domain.Match{}, err
	}

	var status domain.PaymentStatus
	m, err := s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		st, ok := m.StatusOf(playerID)
		if !ok {
			st = domain.NewPlayerMatchStatus(playerID)
		}
		st.AmountPaid = amount
		st.Payment = projection.ClassifyPayment(amount, projection.FairShare(*m, players))
		status = st.Payment
		m.UpsertStatus(st)
		return []string{domain.FieldPlayerStatuses}, nil
	})
	if err != nil {
		return m, err
	}
	s.emit(ctx, teamID, matchID, domain.EventPaymentRecorded, map[string]interface{}{"playerId": playerID, "amount": amount, "status": status})
	return m, nil
}

// StatsInput is one player's performance in a match.
type StatsInput struct {
	Goals          int `json:"goals"`
	HeaderGoals    int `json:"headerGoals"`
	PenaltyGoals   int `json:"penaltyGoals"`
	FreeKickGoals  int `json:"freeKickGoals"`
	Assists        int `json:"assists"`
	YellowCards    int `json:"yellowCards"`
	RedCards       int `json:"redCards"`
	QuartersPlayed int `json:"quartersPlayed"`
}

func (in StatsInput) validate() error {
	for name, v := range map[string]int{
		"goals": in.Goals, "headerGoals": in.HeaderGoals, "penaltyGoals": in.PenaltyGoals,
		"freeKickGoals": in.FreeKickGoals, "assists": in.Assists, "yellowCards": in.YellowCards,
		"redCards": in.RedCards, "quartersPlayed": in.QuartersPlayed,
	} {
		if v < 0 {
			return domain.ErrValidation(fmt.Sprintf("%s must not be negative", name))
		}
	}
	if in.QuartersPlayed > 4 {
		return domain.ErrValidation("a match has four quarters")
	}
	return nil
}

// UpdatePlayerStats replaces a player's counters for a match.
func (s *MatchService) UpdatePlayerStats(ctx context.Context, teamID string, matchID, playerID int64, in StatsInput) (domain.Match, error) {
	if err := in.validate(); err != nil {
		return domain.Match{}, err
	}
	m, err := s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		st, ok := m.StatusOf(playerID)
		if !ok {
			st = domain.NewPlayerMatchStatus(playerID)
		}
		st.Goals = in.Goals
		st.HeaderGoals = in.HeaderGoals
		st.PenaltyGoals = in.PenaltyGoals
		st.FreeKickGoals = in.FreeKickGoals
		st.Assists = in.Assists
		st.YellowCards = in.YellowCards
		st.RedCards = in.RedCards
		st.QuartersPlayed = in.QuartersPlayed
		m.UpsertStatus(st)
		return []string{domain.FieldPlayerStatuses}, nil
	})
	if err != nil {
		return m, err
	}
	s.emit(ctx, teamID, matchID, domain.EventStatsRecorded, map[string]interface{}{"playerId": playerID, "stats": in})
	return m, nil
}

// SubmitRatings stores the rater's scores, replacing any earlier ballot. Voting must
// be open and the rater must have played. Raters cannot score themselves.
func (s *MatchService) SubmitRatings(ctx context.Context, teamID string, matchID, raterID int64, scores map[int64]float64) (domain.Match, error) {
	if len(scores) == 0 {
		return domain.Match{}, domain.ErrValidation("no ratings submitted")
	}
	ballot := make(map[string]float64, len(scores))
	for target, score := range scores {
		if target == raterID {
			return domain.Match{}, domain.ErrValidation("players cannot rate themselves")
		}
		if err := domain.ValidateRating(score); err != nil {
			return domain.Match{}, domain.ErrValidation(err.Error())
		}
		ballot[strconv.FormatInt(target, 10)] = score
	}

	m, err := s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		if !m.VotingOpen {
			return nil, domain.ErrConflict("voting is closed for this match")
		}
		if st, ok := m.StatusOf(raterID); !ok || st.Attendance != domain.AttendanceConfirmed {
			return nil, domain.ErrForbidden("only confirmed players can vote")
		}
		for target := range scores {
			if st, ok := m.StatusOf(target); !ok || st.Attendance != domain.AttendanceConfirmed {
				return nil, domain.ErrValidation(fmt.Sprintf("player %d did not play this match", target))
			}
		}
		if m.Ratings == nil {
			m.Ratings = domain.Ratings{}
		}
		m.Ratings[strconv.FormatInt(raterID, 10)] = ballot
		return []string{domain.FieldRatings}, nil
	})
	if err != nil {
		return m, err
	}
	s.emit(ctx, teamID, matchID, domain.EventRatingsSubmitted, map[string]interface{}{"raterId": raterID, "count": len(ballot)})
	return m, nil
}

// SetVotingOpen opens or closes the ratings ballot.
func (s *MatchService) SetVotingOpen(ctx context.Context, teamID string, matchID int64, open bool) (domain.Match, error) {
	m, err := s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		m.VotingOpen = open
		return []string{domain.FieldVotingOpen}, nil
	})
	if err != nil {
		return m, err
	}
	s.emit(ctx, teamID, matchID, domain.EventVotingToggled, map[string]bool{"open": open})
	return m, nil
}

// SetStatus moves a match along its one-way lifecycle.
func (s *MatchService) SetStatus(ctx context.Context, teamID string, matchID int64, next domain.MatchStatus) (domain.Match, error) {
	var prev domain.MatchStatus
	m, err := s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		if !m.Status.CanTransition(next) {
			return nil, domain.ErrConflict(fmt.Sprintf("match cannot go from %s to %s", m.Status, next))
		}
		prev = m.Status
		m.Status = next
		return []string{domain.FieldStatus}, nil
	})
	if err != nil {
		return m, err
	}
	if prev != next {
		s.emit(ctx, teamID, matchID, domain.EventMatchStatusChanged, map[string]domain.MatchStatus{"from": prev, "to": next})
	}
	return m, nil
}

// SetScore records the final score.
func (s *MatchService) SetScore(ctx context.Context, teamID string, matchID int64, goalsFor, goalsAgainst int) (domain.Match, error) {
	if goalsFor < 0 || goalsAgainst < 0 {
		return domain.Match{}, domain.ErrValidation("score must not be negative")
	}
	return s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		m.GoalsFor = goalsFor
		m.GoalsAgainst = goalsAgainst
		return []string{domain.FieldGoalsFor, domain.FieldGoalsAgainst}, nil
	})
}

// SetLogistics assigns the four match chores.
func (s *MatchService) SetLogistics(ctx context.Context, teamID string, matchID int64, l domain.Logistics) (domain.Match, error) {
	m, err := s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		m.Logistics = l
		return []string{domain.FieldLogistics}, nil
	})
	if err != nil {
		return m, err
	}
	s.emit(ctx, teamID, matchID, domain.EventLogisticsAssigned, l)
	return m, nil
}

// AddThirdHalfItem appends a consumption line to the after-match tab.
func (s *MatchService) AddThirdHalfItem(ctx context.Context, teamID string, matchID int64, item domain.ConsumptionItem) (domain.Match, error) {
	if item.Description == "" {
		return domain.Match{}, domain.ErrValidation("description is required")
	}
	if err := domain.ValidateAmount(item.Amount); err != nil {
		return domain.Match{}, domain.ErrValidation(err.Error())
	}
	m, err := s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		if m.ThirdHalf == nil {
			m.ThirdHalf = &domain.ThirdHalf{}
		}
		m.ThirdHalf.Items = append(m.ThirdHalf.Items, item)
		return []string{domain.FieldThirdHalf}, nil
	})
	if err != nil {
		return m, err
	}
	s.emit(ctx, teamID, matchID, domain.EventThirdHalfItemAdded, item)
	return m, nil
}

// ScheduleInput holds the editable schedule fields of a match.
type ScheduleInput struct {
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	VenueID      string  `json:"venueId"`
	OpponentID   string  `json:"opponentId"`
	TournamentID string  `json:"tournamentId"`
	Round        int     `json:"round"`
	CourtFee     float64 `json:"courtFee"`
	Notes        string  `json:"notes"`
}

func (in ScheduleInput) validate() error {
	if err := domain.ValidateDate(in.Date); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateKickoff(in.Time); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateAmount(in.CourtFee); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if in.Round < 0 {
		return domain.ErrValidation("round must not be negative")
	}
	return nil
}

func (in ScheduleInput) applyTo(m *domain.Match) {
	m.Date = in.Date
	m.Time = in.Time
	m.VenueID = in.VenueID
	m.OpponentID = in.OpponentID
	m.TournamentID = in.TournamentID
	m.Round = in.Round
	m.CourtFee = in.CourtFee
	m.Notes = in.Notes
}

var scheduleFields = []string{"date", "time", "venueId", "opponentId", "tournamentId", "round", domain.FieldCourtFee, "notes"}

// checkRound rejects a second match in the same tournament round.
func checkRound(matches []domain.Match, self int64, in ScheduleInput) error {
	if in.TournamentID == "" || in.Round == 0 {
		return nil
	}
	for _, m := range matches {
		if m.ID != self && m.TournamentID == in.TournamentID && m.Round == in.Round {
			return domain.ErrConflict(fmt.Sprintf("round %d of %s already has match %d", in.Round, in.TournamentID, m.ID))
		}
	}
	return nil
}

// CreateMatch schedules a new match with the next free id.
func (s *MatchService) CreateMatch(ctx context.Context, teamID string, in ScheduleInput) (domain.Match, error) {
	if err := in.validate(); err != nil {
		return domain.Match{}, err
	}
	matches, err := s.List(ctx, teamID)
	if err != nil {
		return domain.Match{}, err
	}
	if err := checkRound(matches, 0, in); err != nil {
		return domain.Match{}, err
	}

	var maxID int64
	for _, m := range matches {
		maxID = max(maxID, m.ID)
	}
	m, err := repository.CreateNext(ctx, s.adapter, teamID, domain.CollectionMatches, maxID+1, func(id int64) domain.Match {
		m := domain.Match{
			ID:             id,
			Status:         domain.MatchScheduled,
			PlayerStatuses: []domain.PlayerMatchStatus{},
		}
		in.applyTo(&m)
		return m
	})
	if err != nil {
		return domain.Match{}, err
	}
	s.emit(ctx, teamID, m.ID, domain.EventMatchCreated, in)
	return m, nil
}

// UpdateMatch rewrites the schedule fields of a match.
func (s *MatchService) UpdateMatch(ctx context.Context, teamID string, matchID int64, in ScheduleInput) (domain.Match, error) {
	if err := in.validate(); err != nil {
		return domain.Match{}, err
	}
	matches, err := s.List(ctx, teamID)
	if err != nil {
		return domain.Match{}, err
	}
	if err := checkRound(matches, matchID, in); err != nil {
		return domain.Match{}, err
	}
	return s.update(ctx, teamID, matchID, func(m *domain.Match) ([]string, error) {
		in.applyTo(m)
		return scheduleFields, nil
	})
}

// DeleteMatch removes a match once the literal confirmation phrase is typed.
// A mismatch leaves the store untouched.
func (s *MatchService) DeleteMatch(ctx context.Context, teamID string, matchID int64, confirmation string) error {
	if err := domain.CheckConfirmation(confirmation, domain.DeleteMatchPhrase); err != nil {
		return err
	}
	if err := s.adapter.DeleteDocument(ctx, teamID, domain.CollectionMatches, strconv.FormatInt(matchID, 10)); err != nil {
		return err
	}
	s.emit(ctx, teamID, matchID, domain.EventMatchDeleted, nil)
	return nil
}
