package projection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsheet/platform/internal/domain"
)

func confirmed(id int64, paid float64) domain.PlayerMatchStatus {
	s := domain.NewPlayerMatchStatus(id)
	s.Attendance = domain.AttendanceConfirmed
	s.AmountPaid = paid
	return s
}

func roster() []domain.Player {
	return []domain.Player{
		{ID: 1, Name: "Ana", Role: domain.RolePlayer},
		{ID: 2, Name: "Beto", Role: domain.RoleCaptain},
		{ID: 3, Name: "Caro", Role: domain.RolePlayer},
		{ID: 4, Name: "Dani", Role: domain.RolePlayer},
		{ID: 5, Name: "Eli", Role: domain.RolePlayer},
		{ID: 9, Name: "Profe", Role: domain.RoleCoach},
	}
}

// --- Treasury ---

func TestTreasuryData_BalanceEqualsCollectedMinusSpent(t *testing.T) {
	matches := []domain.Match{
		{ID: 2, Date: "2026-03-21", Status: domain.MatchFinished, CourtFee: 90000,
			PlayerStatuses: []domain.PlayerMatchStatus{confirmed(1, 20000.5), confirmed(2, 19999.3)}},
		{ID: 1, Date: "2026-03-14", Status: domain.MatchFinished, CourtFee: 100000.1,
			PlayerStatuses: []domain.PlayerMatchStatus{confirmed(1, 33333.3), confirmed(3, 0.7)}},
		{ID: 3, Date: "2026-03-28", Status: domain.MatchScheduled, CourtFee: 100000,
			PlayerStatuses: []domain.PlayerMatchStatus{confirmed(1, 50000)}},
		{ID: 4, Date: "2026-04-04", Status: domain.MatchSuspended, CourtFee: 80000},
	}

	tr := TreasuryData(matches)

	require.Len(t, tr.Matches, 2)
	assert.Equal(t, int64(1), tr.Matches[0].MatchID)
	assert.Equal(t, int64(2), tr.Matches[1].MatchID)

	var collected, spent float64
	for _, m := range tr.Matches {
		collected += m.Collected
		spent += m.CourtFee
	}
	assert.Equal(t, collected, tr.TotalCollected)
	assert.Equal(t, spent, tr.TotalSpent)
	assert.Equal(t, tr.TotalCollected-tr.TotalSpent, tr.Balance)
	assert.InDelta(t, 39999.8-90000, tr.Matches[1].Balance, 1e-6)
}

func TestTreasuryData_Empty(t *testing.T) {
	tr := TreasuryData(nil)
	assert.Empty(t, tr.Matches)
	assert.Zero(t, tr.Balance)
}

// --- Fair share and payments ---

func TestFairShare(t *testing.T) {
	m := domain.Match{CourtFee: 100000}
	for id := int64(1); id <= 5; id++ {
		m.PlayerStatuses = append(m.PlayerStatuses, confirmed(id, 0))
	}
	m.PlayerStatuses = append(m.PlayerStatuses, confirmed(9, 0))

	absent := domain.NewPlayerMatchStatus(10)
	absent.Attendance = domain.AttendanceAbsent
	m.PlayerStatuses = append(m.PlayerStatuses, absent)

	assert.Equal(t, 20000.0, FairShare(m, roster()), "coach and absent players do not split the fee")
}

func TestFairShare_ZeroWithoutEligiblePlayers(t *testing.T) {
	m := domain.Match{CourtFee: 100000, PlayerStatuses: []domain.PlayerMatchStatus{
		confirmed(9, 0),
		domain.NewPlayerMatchStatus(1),
	}}
	assert.Equal(t, 0.0, FairShare(m, roster()))
	assert.Equal(t, 0.0, FairShare(domain.Match{CourtFee: 5000}, nil))
}

func TestFairShare_IndependentOfOrder(t *testing.T) {
	a := domain.Match{CourtFee: 70000, PlayerStatuses: []domain.PlayerMatchStatus{confirmed(1, 0), confirmed(9, 0), confirmed(3, 0)}}
	b := domain.Match{CourtFee: 70000, PlayerStatuses: []domain.PlayerMatchStatus{confirmed(3, 0), confirmed(1, 0), confirmed(9, 0)}}
	assert.Equal(t, FairShare(a, roster()), FairShare(b, roster()))
	assert.Equal(t, 35000.0, FairShare(a, roster()))
}

func TestClassifyPayment(t *testing.T) {
	const share = 20000.0
	tests := []struct {
		name   string
		amount float64
		want   domain.PaymentStatus
	}{
		{"nothing paid", 0, domain.PaymentUnpaid},
		{"exact boundary", share * PaidThreshold, domain.PaymentPaid},
		{"just under boundary", share * 0.94999, domain.PaymentPartial},
		{"nineteen thousand", 19000, domain.PaymentPaid},
		{"one under", 18999, domain.PaymentPartial},
		{"nineteen and a half", 19500, domain.PaymentPaid},
		{"full", share, domain.PaymentPaid},
		{"overpaid", 25000, domain.PaymentPaid},
		{"small", 1, domain.PaymentPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPayment(tt.amount, share))
		})
	}
}

func TestClassifyPayment_ZeroShare(t *testing.T) {
	assert.Equal(t, domain.PaymentUnpaid, ClassifyPayment(0, 0))
	assert.Equal(t, domain.PaymentPaid, ClassifyPayment(100, 0))
}

func TestMatchPayments(t *testing.T) {
	m := domain.Match{CourtFee: 60000, PlayerStatuses: []domain.PlayerMatchStatus{
		confirmed(1, 30000), confirmed(2, 10000), confirmed(9, 0),
	}}
	lines := MatchPayments(m, roster())
	require.Len(t, lines, 2)
	assert.Equal(t, domain.PaymentPaid, lines[0].Status)
	assert.Equal(t, 0.0, lines[0].Owed)
	assert.Equal(t, domain.PaymentPartial, lines[1].Status)
	assert.Equal(t, 20000.0, lines[1].Owed)
}

// --- Player stats ---

func TestGlobalPlayerStats(t *testing.T) {
	scorer := confirmed(1, 20000)
	scorer.Goals = 2
	scorer.HeaderGoals = 1
	scorer.PenaltyGoals = 1
	scorer.Assists = 1
	scorer.YellowCards = 1
	scorer.QuartersPlayed = 4

	doubtful := domain.NewPlayerMatchStatus(2)
	doubtful.Attendance = domain.AttendanceDoubtful
	doubtful.Goals = 5

	matches := []domain.Match{
		{ID: 1, Status: domain.MatchFinished, PlayerStatuses: []domain.PlayerMatchStatus{scorer, doubtful},
			Ratings: domain.Ratings{
				"2": {"1": 8, "3": 6},
				"3": {"1": 7},
			}},
		{ID: 2, Status: domain.MatchFinished, PlayerStatuses: []domain.PlayerMatchStatus{confirmed(1, 5000)},
			Ratings: domain.Ratings{"4": {"1": 9}}},
		{ID: 3, Status: domain.MatchScheduled, PlayerStatuses: []domain.PlayerMatchStatus{scorer},
			Ratings: domain.Ratings{"4": {"1": 1}}},
	}

	stats := GlobalPlayerStats(roster(), matches)
	require.Len(t, stats, len(roster()))

	ana := stats[0]
	assert.Equal(t, 2, ana.MatchesPlayed)
	assert.Equal(t, 2, ana.Goals)
	assert.Equal(t, 4, ana.TotalGoals)
	assert.Equal(t, 1, ana.Assists)
	assert.Equal(t, 1, ana.YellowCards)
	assert.Equal(t, 4, ana.QuartersPlayed)
	assert.Equal(t, 25000.0, ana.AmountPaid)
	assert.Equal(t, 3, ana.RatingCount)
	assert.Equal(t, 8.0, ana.AvgRating)

	beto := stats[1]
	assert.Equal(t, 0, beto.MatchesPlayed, "doubtful attendance does not count")
	assert.Equal(t, 0, beto.Goals)
}

func TestGlobalPlayerStats_NoRatingsAveragesZero(t *testing.T) {
	matches := []domain.Match{{ID: 1, Status: domain.MatchFinished, PlayerStatuses: []domain.PlayerMatchStatus{confirmed(3, 0)}}}
	stats := GlobalPlayerStats(roster(), matches)
	assert.Equal(t, 1, stats[2].MatchesPlayed)
	assert.Equal(t, 0, stats[2].RatingCount)
	assert.Equal(t, 0.0, stats[2].AvgRating)
}

func TestRecord(t *testing.T) {
	r := Record([]domain.Match{
		{Status: domain.MatchFinished, GoalsFor: 3, GoalsAgainst: 1},
		{Status: domain.MatchFinished, GoalsFor: 2, GoalsAgainst: 2},
		{Status: domain.MatchFinished, GoalsFor: 0, GoalsAgainst: 1},
		{Status: domain.MatchSuspended, GoalsFor: 9},
	})
	assert.Equal(t, SeasonRecord{Played: 3, Won: 1, Drawn: 1, Lost: 1, GoalsFor: 5, GoalsAgainst: 4}, r)
}

// --- Logistics ---

func TestLogisticsRanking(t *testing.T) {
	matches := []domain.Match{
		{Status: domain.MatchFinished, Logistics: domain.Logistics{JerseyWasherID: 1, BallBringerID: 1, WaterBringerID: 2}},
		{Status: domain.MatchFinished, Logistics: domain.Logistics{JerseyWasherID: 2, MedKitBringerID: 3}},
		{Status: domain.MatchScheduled, Logistics: domain.Logistics{JerseyWasherID: 4, BallBringerID: 4}},
	}

	ranking := LogisticsRanking(roster(), matches)
	require.Len(t, ranking, len(roster()))

	for i := 1; i < len(ranking); i++ {
		assert.LessOrEqual(t, ranking[i-1].Total, ranking[i].Total)
	}

	byID := make(map[int64]LogisticsCount)
	for _, c := range ranking {
		byID[c.PlayerID] = c
	}
	assert.Equal(t, 2, byID[1].Total)
	assert.Equal(t, 2, byID[2].Total)
	assert.Equal(t, 1, byID[3].MedKit)
	assert.True(t, byID[4].Flagged, "assignments in unfinished matches do not count")
	assert.False(t, byID[1].Flagged)

	assert.Equal(t, "Dani", ranking[0].Name, "zero-total ties sort by name")
}

// --- Match summaries ---

func TestThirdHalfTotals(t *testing.T) {
	m := domain.Match{ThirdHalf: &domain.ThirdHalf{Items: []domain.ConsumptionItem{
		{PlayerID: 3, Description: "cerveza", Amount: 3000},
		{PlayerID: 1, Description: "gaseosa", Amount: 1500},
		{PlayerID: 3, Description: "empanadas", Amount: 4000},
	}}}
	sum := ThirdHalfTotals(m)
	assert.Equal(t, 8500.0, sum.Total)
	require.Len(t, sum.Players, 2)
	assert.Equal(t, ConsumptionTotal{PlayerID: 1, Amount: 1500, Items: 1}, sum.Players[0])
	assert.Equal(t, ConsumptionTotal{PlayerID: 3, Amount: 7000, Items: 2}, sum.Players[1])

	assert.Empty(t, ThirdHalfTotals(domain.Match{}).Players)
}

func TestAttendanceSummary(t *testing.T) {
	d := domain.NewPlayerMatchStatus(2)
	d.Attendance = domain.AttendanceDoubtful
	m := domain.Match{PlayerStatuses: []domain.PlayerMatchStatus{confirmed(1, 0), d}}

	a := AttendanceSummary(m, roster())
	assert.Equal(t, Attendance{Confirmed: 1, Doubtful: 1, Pending: 4}, a)
}

// --- Cache ---

func TestCached_ComputesOnce(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()
	calls := 0
	compute := func() Treasury {
		calls++
		return Treasury{Balance: 42}
	}

	key := Key("treasury", "t1", 3, 7)
	first := Cached(ctx, c, key, time.Minute, compute)
	second := Cached(ctx, c, key, time.Minute, compute)

	assert.Equal(t, 42.0, first.Balance)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	assert.NotEqual(t, key, Key("treasury", "t1", 4, 7), "a reopened mirror never shares a key")
}

func TestInMemoryCache_TTLExpiry(t *testing.T) {
	c := NewInMemoryCache()
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("data"), time.Minute))
	_, err := c.Get(ctx, "k1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k1")
	assert.Error(t, err)
}

func TestInMemoryCache_SetSweepsExpiredEntries(t *testing.T) {
	c := NewInMemoryCache()
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for v := uint64(1); v <= 5; v++ {
		require.NoError(t, c.Set(ctx, Key("treasury", "t1", 1, v), []byte("{}"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, "forever", []byte("{}"), 0))
	assert.Equal(t, 6, c.Len())

	now = now.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, Key("treasury", "t1", 1, 6), []byte("{}"), time.Minute))
	assert.Equal(t, 2, c.Len(), "only the entry without expiry and the new one remain")
}
