// Package projection derives statistics from the mirrored players and matches.
// Every function here is a pure read of its inputs; results are recomputed on
// demand and only ever cached, never persisted.
package projection

import (
	"strconv"

	"github.com/teamsheet/platform/internal/domain"
)

// PlayerStats is one player's accumulated record over finished matches they
// confirmed attendance for.
type PlayerStats struct {
	PlayerID       int64       `json:"playerId"`
	Name           string      `json:"name"`
	Role           domain.Role `json:"role"`
	MatchesPlayed  int         `json:"matchesPlayed"`
	Goals          int         `json:"goals"`
	HeaderGoals    int         `json:"headerGoals"`
	PenaltyGoals   int         `json:"penaltyGoals"`
	FreeKickGoals  int         `json:"freeKickGoals"`
	TotalGoals     int         `json:"totalGoals"`
	Assists        int         `json:"assists"`
	YellowCards    int         `json:"yellowCards"`
	RedCards       int         `json:"redCards"`
	QuartersPlayed int         `json:"quartersPlayed"`
	AmountPaid     float64     `json:"amountPaid"`
	RatingSum      float64     `json:"ratingSum"`
	RatingCount    int         `json:"ratingCount"`
	AvgRating      float64     `json:"avgRating"`
}

// GlobalPlayerStats computes PlayerStats for every player, in roster order.
// A match counts for a player when it is FINISHED and the player's attendance in it
// is CONFIRMED. Ratings are collected from those matches across all raters.
func GlobalPlayerStats(players []domain.Player, matches []domain.Match) []PlayerStats {
	out := make([]PlayerStats, 0, len(players))
	for _, p := range players {
		out = append(out, playerStats(p, matches))
	}
	return out
}

func playerStats(p domain.Player, matches []domain.Match) PlayerStats {
	st := PlayerStats{PlayerID: p.ID, Name: p.DisplayName(), Role: p.Role}
	target := strconv.FormatInt(p.ID, 10)

	for _, m := range matches {
		if !m.Finished() {
			continue
		}
		s, ok := m.StatusOf(p.ID)
		if !ok || s.Attendance != domain.AttendanceConfirmed {
			continue
		}

		st.MatchesPlayed++
		st.Goals += s.Goals
		st.HeaderGoals += s.HeaderGoals
		st.PenaltyGoals += s.PenaltyGoals
		st.FreeKickGoals += s.FreeKickGoals
		st.TotalGoals += s.TotalGoals()
		st.Assists += s.Assists
		st.YellowCards += s.YellowCards
		st.RedCards += s.RedCards
		st.QuartersPlayed += s.QuartersPlayed
		st.AmountPaid += s.AmountPaid

		for _, byTarget := range m.Ratings {
			if score, ok := byTarget[target]; ok {
				st.RatingSum += score
				st.RatingCount++
			}
		}
	}

	if st.RatingCount > 0 {
		st.AvgRating = st.RatingSum / float64(st.RatingCount)
	}
	return st
}

// SeasonRecord is the win/draw/loss tally of finished matches.
type SeasonRecord struct {
	Played       int `json:"played"`
	Won          int `json:"won"`
	Drawn        int `json:"drawn"`
	Lost         int `json:"lost"`
	GoalsFor     int `json:"goalsFor"`
	GoalsAgainst int `json:"goalsAgainst"`
}

// Record tallies the results of finished matches.
func Record(matches []domain.Match) SeasonRecord {
	var r SeasonRecord
	for _, m := range matches {
		if !m.Finished() {
			continue
		}
		r.Played++
		r.GoalsFor += m.GoalsFor
		r.GoalsAgainst += m.GoalsAgainst
		switch {
		case m.GoalsFor > m.GoalsAgainst:
			r.Won++
		case m.GoalsFor < m.GoalsAgainst:
			r.Lost++
		default:
			r.Drawn++
		}
	}
	return r
}
