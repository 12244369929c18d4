package projection

import (
	"sort"

	"github.com/teamsheet/platform/internal/domain"
)

// ConsumptionTotal is what one player consumed at the third half.
type ConsumptionTotal struct {
	PlayerID int64   `json:"playerId"`
	Amount   float64 `json:"amount"`
	Items    int     `json:"items"`
}

// ThirdHalfSummary totals the after-match tab per player, ordered by player id.
type ThirdHalfSummary struct {
	Players []ConsumptionTotal `json:"players"`
	Total   float64            `json:"total"`
}

// ThirdHalfTotals sums the consumption ledger of m.
func ThirdHalfTotals(m domain.Match) ThirdHalfSummary {
	sum := ThirdHalfSummary{Players: []ConsumptionTotal{}}
	if m.ThirdHalf == nil {
		return sum
	}

	byPlayer := make(map[int64]*ConsumptionTotal)
	for _, item := range m.ThirdHalf.Items {
		c, ok := byPlayer[item.PlayerID]
		if !ok {
			c = &ConsumptionTotal{PlayerID: item.PlayerID}
			byPlayer[item.PlayerID] = c
		}
		c.Amount += item.Amount
		c.Items++
		sum.Total += item.Amount
	}
	for _, c := range byPlayer {
		sum.Players = append(sum.Players, *c)
	}
	sort.Slice(sum.Players, func(i, j int) bool { return sum.Players[i].PlayerID < sum.Players[j].PlayerID })
	return sum
}

// Attendance counts the answers of a match, including roster players who have no
// record yet as PENDING.
type Attendance struct {
	Confirmed int `json:"confirmed"`
	Doubtful  int `json:"doubtful"`
	Absent    int `json:"absent"`
	Pending   int `json:"pending"`
}

// AttendanceSummary tallies attendance of m over the roster.
func AttendanceSummary(m domain.Match, players []domain.Player) Attendance {
	var a Attendance
	seen := make(map[int64]bool, len(m.PlayerStatuses))
	for _, s := range m.PlayerStatuses {
		seen[s.PlayerID] = true
		switch s.Attendance {
		case domain.AttendanceConfirmed:
			a.Confirmed++
		case domain.AttendanceDoubtful:
			a.Doubtful++
		case domain.AttendanceAbsent:
			a.Absent++
		default:
			a.Pending++
		}
	}
	for _, p := range players {
		if !seen[p.ID] {
			a.Pending++
		}
	}
	return a
}
