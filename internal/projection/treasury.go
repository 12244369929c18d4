package projection

import (
	"sort"

	"github.com/teamsheet/platform/internal/domain"
)

// PaidThreshold is the share of the fair share that counts as fully paid. The
// tolerance absorbs rounding of cash payments.
const PaidThreshold = 0.95

// MatchBalance is the money collected for one finished match.
type MatchBalance struct {
	MatchID   int64   `json:"matchId"`
	Date      string  `json:"date"`
	Collected float64 `json:"collected"`
	CourtFee  float64 `json:"courtFee"`
	Balance   float64 `json:"balance"`
}

// Treasury is the team's cash position over all finished matches.
type Treasury struct {
	Matches        []MatchBalance `json:"matches"`
	TotalCollected float64        `json:"totalCollected"`
	TotalSpent     float64        `json:"totalSpent"`
	Balance        float64        `json:"balance"`
}

// TreasuryData sums, per finished match, what players paid against the court fee.
// Matches are listed by date, then id.
func TreasuryData(matches []domain.Match) Treasury {
	t := Treasury{Matches: []MatchBalance{}}
	for _, m := range matches {
		if !m.Finished() {
			continue
		}
		var collected float64
		for _, s := range m.PlayerStatuses {
			collected += s.AmountPaid
		}
		t.Matches = append(t.Matches, MatchBalance{
			MatchID:   m.ID,
			Date:      m.Date,
			Collected: collected,
			CourtFee:  m.CourtFee,
			Balance:   collected - m.CourtFee,
		})
		t.TotalCollected += collected
		t.TotalSpent += m.CourtFee
	}
	t.Balance = t.TotalCollected - t.TotalSpent

	sort.SliceStable(t.Matches, func(i, j int) bool {
		if t.Matches[i].Date != t.Matches[j].Date {
			return t.Matches[i].Date < t.Matches[j].Date
		}
		return t.Matches[i].MatchID < t.Matches[j].MatchID
	})
	return t
}

// EligibleCount counts confirmed players of m who split the court fee. Staff do not
// pay. Players missing from the roster still count.
func EligibleCount(m domain.Match, players []domain.Player) int {
	roster := domain.PlayerIndex(players)
	n := 0
	for _, s := range m.PlayerStatuses {
		if s.Attendance != domain.AttendanceConfirmed {
			continue
		}
		if p, ok := roster[s.PlayerID]; ok && p.Role.IsStaff() {
			continue
		}
		n++
	}
	return n
}

// FairShare splits the court fee of m among its eligible players. It is 0 when
// nobody is eligible.
func FairShare(m domain.Match, players []domain.Player) float64 {
	n := EligibleCount(m, players)
	if n == 0 {
		return 0
	}
	return m.CourtFee / float64(n)
}

// ClassifyPayment maps an entered amount to a payment status: nothing paid is
// UNPAID, at least PaidThreshold of the fair share is PAID, anything in between is
// PARTIAL.
func ClassifyPayment(amount, fairShare float64) domain.PaymentStatus {
	switch {
	case amount <= 0:
		return domain.PaymentUnpaid
	case amount >= fairShare*PaidThreshold:
		return domain.PaymentPaid
	default:
		return domain.PaymentPartial
	}
}

// PaymentLine is one player's payment against the fair share of a match.
type PaymentLine struct {
	PlayerID   int64                `json:"playerId"`
	AmountPaid float64              `json:"amountPaid"`
	Owed       float64              `json:"owed"`
	Status     domain.PaymentStatus `json:"status"`
}

// MatchPayments lists the confirmed, non-staff players of m with what they still owe.
func MatchPayments(m domain.Match, players []domain.Player) []PaymentLine {
	share := FairShare(m, players)
	roster := domain.PlayerIndex(players)

	lines := []PaymentLine{}
	for _, s := range m.PlayerStatuses {
		if s.Attendance != domain.AttendanceConfirmed {
			continue
		}
		if p, ok := roster[s.PlayerID]; ok && p.Role.IsStaff() {
			continue
		}
		owed := share - s.AmountPaid
		if owed < 0 {
			owed = 0
		}
		lines = append(lines, PaymentLine{
			PlayerID:   s.PlayerID,
			AmountPaid: s.AmountPaid,
			Owed:       owed,
			Status:     ClassifyPayment(s.AmountPaid, share),
		})
	}
	return lines
}
