package service

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
)

// RosterService manages the players of a team.
type RosterService struct {
	adapter *repository.Adapter
	events  EventSink
	logger  *slog.Logger
}

// NewRosterService creates a RosterService.
func NewRosterService(adapter *repository.Adapter, events EventSink, logger *slog.Logger) *RosterService {
	return &RosterService{adapter: adapter, events: events, logger: logger}
}

// List returns the roster ordered by id.
func (s *RosterService) List(ctx context.Context, teamID string) ([]domain.Player, error) {
	return repository.List[domain.Player](ctx, s.adapter, teamID, domain.CollectionPlayers, "")
}

// Get returns one player.
func (s *RosterService) Get(ctx context.Context, teamID string, playerID int64) (domain.Player, error) {
	return repository.Get[domain.Player](ctx, s.adapter, teamID, domain.CollectionPlayers, strconv.FormatInt(playerID, 10))
}

// Save creates or updates a player profile. A zero id assigns the next free one.
// PIN hashes and game counters are never taken from p; SetPIN and the game service
// own them.
func (s *RosterService) Save(ctx context.Context, teamID string, p domain.Player) (domain.Player, error) {
	if p.Role == "" {
		p.Role = domain.RolePlayer
	}
	p.PINHash = ""
	p.GameAttempts = nil
	p.AttemptsDate = ""

	if p.ID == 0 {
		players, err := s.List(ctx, teamID)
		if err != nil {
			return domain.Player{}, err
		}
		var maxID int64
		for _, existing := range players {
			maxID = max(maxID, existing.ID)
		}
		created, err := repository.CreateNext(ctx, s.adapter, teamID, domain.CollectionPlayers, maxID+1, func(id int64) domain.Player {
			p.ID = id
			return p
		})
		if err != nil {
			return domain.Player{}, err
		}
		p = created
	} else if err := s.adapter.SaveDocument(ctx, teamID, domain.CollectionPlayers, p); err != nil {
		return domain.Player{}, err
	}
	record(ctx, s.events, s.logger, domain.NewEvent(teamID, domain.AggregatePlayer, p.DocID(), domain.EventPlayerSaved, map[string]interface{}{"name": p.Name, "role": p.Role}))
	return p, nil
}

// SetPIN stores the bcrypt hash of a new four-digit PIN.
func (s *RosterService) SetPIN(ctx context.Context, teamID string, playerID int64, pin string) error {
	if err := domain.ValidatePIN(pin); err != nil {
		return domain.ErrValidation(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return domain.ErrInternal("hash pin", err)
	}
	_, err = repository.Update(ctx, s.adapter, teamID, domain.CollectionPlayers, strconv.FormatInt(playerID, 10), func(p *domain.Player) ([]string, error) {
		p.PINHash = string(hash)
		return []string{"pinHash"}, nil
	})
	return err
}

// Delete removes a player once the literal confirmation phrase is typed. Match
// history keeps the player's statuses.
func (s *RosterService) Delete(ctx context.Context, teamID string, playerID int64, confirmation string) error {
	if err := domain.CheckConfirmation(confirmation, domain.DeletePlayerPhrase); err != nil {
		return err
	}
	id := strconv.FormatInt(playerID, 10)
	if err := s.adapter.DeleteDocument(ctx, teamID, domain.CollectionPlayers, id); err != nil {
		return err
	}
	record(ctx, s.events, s.logger, domain.NewEvent(teamID, domain.AggregatePlayer, id, domain.EventPlayerDeleted, nil))
	return nil
}
