package projection

import (
	"sort"

	"github.com/teamsheet/platform/internal/domain"
)

// LogisticsCount is how often a player took each match task.
type LogisticsCount struct {
	PlayerID   int64  `json:"playerId"`
	Name       string `json:"name"`
	JerseyWash int    `json:"jerseyWash"`
	Ball       int    `json:"ball"`
	Water      int    `json:"water"`
	MedKit     int    `json:"medKit"`
	Total      int    `json:"total"`
	// Flagged marks players who never took a task.
	Flagged bool `json:"flagged"`
}

// LogisticsRanking counts task assignments over finished matches and sorts players
// ascending by total, so under-contributors come first. Ties sort by name, then id.
func LogisticsRanking(players []domain.Player, matches []domain.Match) []LogisticsCount {
	counts := make(map[int64]*LogisticsCount, len(players))
	out := make([]LogisticsCount, len(players))
	for i, p := range players {
		out[i] = LogisticsCount{PlayerID: p.ID, Name: p.DisplayName()}
		counts[p.ID] = &out[i]
	}

	for _, m := range matches {
		if !m.Finished() {
			continue
		}
		l := m.Logistics
		if c, ok := counts[l.JerseyWasherID]; ok {
			c.JerseyWash++
		}
		if c, ok := counts[l.BallBringerID]; ok {
			c.Ball++
		}
		if c, ok := counts[l.WaterBringerID]; ok {
			c.Water++
		}
		if c, ok := counts[l.MedKitBringerID]; ok {
			c.MedKit++
		}
	}

	for i := range out {
		c := &out[i]
		c.Total = c.JerseyWash + c.Ball + c.Water + c.MedKit
		c.Flagged = c.Total == 0
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total < out[j].Total
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}
