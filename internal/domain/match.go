package domain

import (
	"fmt"
	"strconv"
	"time"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchScheduled MatchStatus = "SCHEDULED"
	MatchFinished  MatchStatus = "FINISHED"
	MatchSuspended MatchStatus = "SUSPENDED"
)

// CanTransition reports whether a match may move from s to next.
// SCHEDULED is the only state with outgoing transitions.
func (s MatchStatus) CanTransition(next MatchStatus) bool {
	if s == next {
		return true
	}
	return s == MatchScheduled && (next == MatchFinished || next == MatchSuspended)
}

// Attendance is a player's answer for a match.
type Attendance string

const (
	AttendanceConfirmed Attendance = "CONFIRMED"
	AttendanceDoubtful  Attendance = "DOUBTFUL"
	AttendanceAbsent    Attendance = "ABSENT"
	AttendancePending   Attendance = "PENDING"
)

// Valid reports whether a is a known attendance value.
func (a Attendance) Valid() bool {
	switch a {
	case AttendanceConfirmed, AttendanceDoubtful, AttendanceAbsent, AttendancePending:
		return true
	}
	return false
}

// PaymentStatus classifies what a player paid against the fair share.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "PAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentUnpaid  PaymentStatus = "UNPAID"
)

// PlayerMatchStatus is one player's attendance, payment and performance for a match.
type PlayerMatchStatus struct {
	PlayerID       int64         `json:"playerId"`
	Attendance     Attendance    `json:"attendance"`
	Payment        PaymentStatus `json:"payment"`
	AmountPaid     float64       `json:"amountPaid"`
	Goals          int           `json:"goals"`
	HeaderGoals    int           `json:"headerGoals"`
	PenaltyGoals   int           `json:"penaltyGoals"`
	FreeKickGoals  int           `json:"freeKickGoals"`
	Assists        int           `json:"assists"`
	YellowCards    int           `json:"yellowCards"`
	RedCards       int           `json:"redCards"`
	QuartersPlayed int           `json:"quartersPlayed"`
}

// TotalGoals sums every goal-type counter.
func (s PlayerMatchStatus) TotalGoals() int {
	return s.Goals + s.HeaderGoals + s.PenaltyGoals + s.FreeKickGoals
}

// NewPlayerMatchStatus returns the zero record created the first time a player is touched.
func NewPlayerMatchStatus(playerID int64) PlayerMatchStatus {
	return PlayerMatchStatus{
		PlayerID:   playerID,
		Attendance: AttendancePending,
		Payment:    PaymentUnpaid,
	}
}

// Logistics names who brings what to a match.
type Logistics struct {
	JerseyWasherID  int64 `json:"jerseyWasherId,omitempty"`
	BallBringerID   int64 `json:"ballBringerId,omitempty"`
	WaterBringerID  int64 `json:"waterBringerId,omitempty"`
	MedKitBringerID int64 `json:"medKitBringerId,omitempty"`
}

// ConsumptionItem is one line of the after-match ("third half") tab.
type ConsumptionItem struct {
	PlayerID    int64   `json:"playerId"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// ThirdHalf is the consumption ledger of the after-match gathering.
type ThirdHalf struct {
	Items []ConsumptionItem `json:"items"`
}

// Ratings maps rater id to target id to score. Keys are decimal player ids.
type Ratings map[string]map[string]float64

// Match is stored at matches/{id}.
type Match struct {
	ID             int64               `json:"id"`
	Date           string              `json:"date"`
	Time           string              `json:"time"`
	VenueID        string              `json:"venueId"`
	OpponentID     string              `json:"opponentId"`
	TournamentID   string              `json:"tournamentId"`
	Round          int                 `json:"round"`
	Status         MatchStatus         `json:"status"`
	CourtFee       float64             `json:"courtFee"`
	GoalsFor       int                 `json:"goalsFor"`
	GoalsAgainst   int                 `json:"goalsAgainst"`
	PlayerStatuses []PlayerMatchStatus `json:"playerStatuses"`
	Ratings        Ratings             `json:"ratings,omitempty"`
	VotingOpen     bool                `json:"votingOpen"`
	Logistics      Logistics           `json:"logistics"`
	ThirdHalf      *ThirdHalf          `json:"thirdHalf,omitempty"`
	Notes          string              `json:"notes"`
}

// Top-level match field names, as written by merge-writes.
const (
	FieldStatus         = "status"
	FieldCourtFee       = "courtFee"
	FieldPlayerStatuses = "playerStatuses"
	FieldRatings        = "ratings"
	FieldVotingOpen     = "votingOpen"
	FieldLogistics      = "logistics"
	FieldThirdHalf      = "thirdHalf"
	FieldGoalsFor       = "goalsFor"
	FieldGoalsAgainst   = "goalsAgainst"
)

// DocID returns the store document id.
func (m Match) DocID() string { return strconv.FormatInt(m.ID, 10) }

// Finished reports whether the match counts for statistics.
func (m Match) Finished() bool { return m.Status == MatchFinished }

// StatusOf returns the player's record and whether it exists.
func (m Match) StatusOf(playerID int64) (PlayerMatchStatus, bool) {
	for _, s := range m.PlayerStatuses {
		if s.PlayerID == playerID {
			return s, true
		}
	}
	return PlayerMatchStatus{}, false
}

// UpsertStatus replaces the player's record, appending it when absent.
// Order of existing entries is preserved.
func (m *Match) UpsertStatus(s PlayerMatchStatus) {
	for i := range m.PlayerStatuses {
		if m.PlayerStatuses[i].PlayerID == s.PlayerID {
			m.PlayerStatuses[i] = s
			return
		}
	}
	m.PlayerStatuses = append(m.PlayerStatuses, s)
}

// Validate checks the fields required before a match is written.
func (m Match) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("match id must be positive")
	}
	if _, err := time.Parse(DateLayout, m.Date); err != nil {
		return fmt.Errorf("invalid match date %q: want YYYY-MM-DD", m.Date)
	}
	switch m.Status {
	case MatchScheduled, MatchFinished, MatchSuspended:
	default:
		return fmt.Errorf("invalid match status: %q", m.Status)
	}
	if m.CourtFee < 0 {
		return fmt.Errorf("court fee must not be negative")
	}
	seen := make(map[int64]bool, len(m.PlayerStatuses))
	for _, s := range m.PlayerStatuses {
		if seen[s.PlayerID] {
			return fmt.Errorf("duplicate status for player %d", s.PlayerID)
		}
		seen[s.PlayerID] = true
		if !s.Attendance.Valid() {
			return fmt.Errorf("invalid attendance %q for player %d", s.Attendance, s.PlayerID)
		}
		if s.AmountPaid < 0 {
			return fmt.Errorf("negative amount paid for player %d", s.PlayerID)
		}
	}
	return nil
}

// DateLayout is the on-disk date format of matches and attempt counters.
const DateLayout = "2006-01-02"
