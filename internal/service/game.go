package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
)

// ErrAttemptsExhausted is returned when a player used up today's plays of a game.
func ErrAttemptsExhausted(game string, limit int) *domain.AppError {
	return &domain.AppError{
		Code:    "ATTEMPTS_EXHAUSTED",
		Message: fmt.Sprintf("no attempts left for %s today (limit %d)", game, limit),
		Status:  429,
	}
}

// Attempts is a player's usage of one game today.
type Attempts struct {
	Game      string `json:"game"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Date      string `json:"date"`
}

// GameService counts mini-game plays per player per day. Counters reset when the
// stored date differs from today.
type GameService struct {
	adapter  *repository.Adapter
	settings *SettingsService
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewGameService creates a GameService. Days roll over at midnight in loc.
func NewGameService(adapter *repository.Adapter, settings *SettingsService, loc *time.Location, logger *slog.Logger) *GameService {
	if loc == nil {
		loc = time.UTC
	}
	return &GameService{adapter: adapter, settings: settings, location: loc, logger: logger, now: time.Now}
}

func (s *GameService) today() string {
	return s.now().In(s.location).Format(domain.DateLayout)
}

func usage(p domain.Player, game, today string, limit int) Attempts {
	used := 0
	if p.AttemptsDate == today {
		used = p.GameAttempts[game]
	}
	return Attempts{Game: game, Used: used, Limit: limit, Remaining: max(limit-used, 0), Date: today}
}

// Status reports today's usage without consuming an attempt.
func (s *GameService) Status(ctx context.Context, teamID string, playerID int64, game string) (Attempts, error) {
	settings, err := s.settings.Get(ctx, teamID)
	if err != nil {
		return Attempts{}, err
	}
	p, err := repository.Get[domain.Player](ctx, s.adapter, teamID, domain.CollectionPlayers, strconv.FormatInt(playerID, 10))
	if err != nil {
		return Attempts{}, err
	}
	return usage(p, game, s.today(), settings.MaxDailyGameAttempts), nil
}

// Consume uses one attempt of game, failing once the daily limit is reached.
func (s *GameService) Consume(ctx context.Context, teamID string, playerID int64, game string) (Attempts, error) {
	if game == "" {
		return Attempts{}, domain.ErrValidation("game is required")
	}
	settings, err := s.settings.Get(ctx, teamID)
	if err != nil {
		return Attempts{}, err
	}
	limit := settings.MaxDailyGameAttempts
	today := s.today()

	p, err := repository.Update(ctx, s.adapter, teamID, domain.CollectionPlayers, strconv.FormatInt(playerID, 10), func(p *domain.Player) ([]string, error) {
		if p.AttemptsDate != today {
			p.AttemptsDate = today
			p.GameAttempts = nil
		}
		if p.GameAttempts[game] >= limit {
			return nil, ErrAttemptsExhausted(game, limit)
		}
		if p.GameAttempts == nil {
			p.GameAttempts = map[string]int{}
		}
		p.GameAttempts[game]++
		return []string{"gameAttempts", "attemptsDate"}, nil
	})
	if err != nil {
		return Attempts{}, err
	}
	return usage(p, game, today, limit), nil
}

// ResetDaily clears stale counters of every player of a team and returns how many
// players were reset.
func (s *GameService) ResetDaily(ctx context.Context, teamID string) (int, error) {
	players, err := repository.List[domain.Player](ctx, s.adapter, teamID, domain.CollectionPlayers, "")
	if err != nil {
		return 0, err
	}
	today := s.today()
	reset := 0
	for _, p := range players {
		if p.AttemptsDate == "" || p.AttemptsDate == today {
			continue
		}
		_, err := repository.Update(ctx, s.adapter, teamID, domain.CollectionPlayers, p.DocID(), func(p *domain.Player) ([]string, error) {
			p.GameAttempts = nil
			p.AttemptsDate = ""
			return []string{"gameAttempts", "attemptsDate"}, nil
		})
		if err != nil {
			return reset, fmt.Errorf("reset attempts of player %d: %w", p.ID, err)
		}
		reset++
	}
	if reset > 0 {
		s.logger.Info("game attempts reset", "team_id", teamID, "players", reset)
	}
	return reset, nil
}
