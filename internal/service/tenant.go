package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
)

// suggestThreshold is the minimum similarity for a "did you mean" hint.
const suggestThreshold = 0.6

// NormalizeTeamCode lower-cases s, strips diacritics and collapses whitespace, so
// "  Los  Pibés " and "los pibes" resolve to the same team.
func NormalizeTeamCode(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// Resolution is the outcome of entering a team name.
type Resolution struct {
	Team  *domain.Team `json:"team,omitempty"`
	Admin bool         `json:"admin"`
}

// TenantService maps typed team names to tenants and manages the team list.
type TenantService struct {
	adapter   *repository.Adapter
	superCode string
	events    EventSink
	logger    *slog.Logger
	now       func() time.Time
}

// NewTenantService creates a TenantService. superCode, when set, resolves to the
// admin realm instead of a team.
func NewTenantService(adapter *repository.Adapter, superCode string, events EventSink, logger *slog.Logger) *TenantService {
	return &TenantService{
		adapter:   adapter,
		superCode: NormalizeTeamCode(superCode),
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// Resolve finds the team whose code matches input. Inactive teams are refused.
func (s *TenantService) Resolve(ctx context.Context, input string) (*Resolution, error) {
	code := NormalizeTeamCode(input)
	if code == "" {
		return nil, domain.ErrValidation("team name is required")
	}
	if s.superCode != "" && code == s.superCode {
		return &Resolution{Admin: true}, nil
	}

	teams, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		if NormalizeTeamCode(teams[i].Code) != code {
			continue
		}
		if teams[i].Status != domain.TeamActive {
			return nil, domain.ErrForbidden(fmt.Sprintf("team %s is inactive", teams[i].Name))
		}
		return &Resolution{Team: &teams[i]}, nil
	}

	appErr := domain.ErrNotFound("team", input)
	if hint := suggest(code, teams); hint != "" {
		appErr.Message = fmt.Sprintf("team %q not found, did you mean %q?", input, hint)
	}
	return nil, appErr
}

// suggest returns the name of the active team closest to code, if any is close.
func suggest(code string, teams []domain.Team) string {
	best, bestScore := "", suggestThreshold
	for _, t := range teams {
		if t.Status != domain.TeamActive {
			continue
		}
		candidate := NormalizeTeamCode(t.Code)
		if fuzzy.Match(code, candidate) {
			return t.Name
		}
		distance := fuzzy.LevenshteinDistance(code, candidate)
		similarity := 1 - float64(distance)/float64(max(len(code), len(candidate)))
		if similarity > bestScore {
			best, bestScore = t.Name, similarity
		}
	}
	return best
}

// Get returns one team.
func (s *TenantService) Get(ctx context.Context, teamID string) (domain.Team, error) {
	return repository.Get[domain.Team](ctx, s.adapter, "", domain.CollectionTeams, teamID)
}

// List returns all teams ordered by id.
func (s *TenantService) List(ctx context.Context) ([]domain.Team, error) {
	return repository.List[domain.Team](ctx, s.adapter, "", domain.CollectionTeams, "")
}

// Create registers a new active team. The id is derived from the normalized code.
func (s *TenantService) Create(ctx context.Context, name, code string) (domain.Team, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Team{}, domain.ErrValidation("team name is required")
	}
	if code == "" {
		code = name
	}
	normalized := NormalizeTeamCode(code)
	if normalized == "" {
		return domain.Team{}, domain.ErrValidation("team code is required")
	}
	if normalized == s.superCode {
		return domain.Team{}, domain.ErrConflict("team code is reserved")
	}

	teams, err := s.List(ctx)
	if err != nil {
		return domain.Team{}, err
	}
	for _, t := range teams {
		if NormalizeTeamCode(t.Code) == normalized {
			return domain.Team{}, domain.ErrConflict(fmt.Sprintf("team code %q is taken", code))
		}
	}

	team := domain.Team{
		ID:        strings.ReplaceAll(normalized, " ", "-"),
		Name:      strings.TrimSpace(name),
		Code:      normalized,
		Status:    domain.TeamActive,
		CreatedAt: s.now().UTC(),
	}
	if err := s.adapter.CreateDocument(ctx, "", domain.CollectionTeams, team); err != nil {
		if domain.IsCode(err, "CONFLICT") {
			return domain.Team{}, domain.ErrConflict(fmt.Sprintf("team code %q is taken", code))
		}
		return domain.Team{}, err
	}
	s.logger.Info("team created", "team_id", team.ID)
	return team, nil
}

// SetStatus activates or deactivates a team.
func (s *TenantService) SetStatus(ctx context.Context, teamID string, status domain.TeamStatus) (domain.Team, error) {
	if status != domain.TeamActive && status != domain.TeamInactive {
		return domain.Team{}, domain.ErrValidation(fmt.Sprintf("invalid team status: %q", status))
	}
	team, err := repository.Update(ctx, s.adapter, "", domain.CollectionTeams, teamID, func(t *domain.Team) ([]string, error) {
		t.Status = status
		return []string{"status"}, nil
	})
	if err != nil {
		return team, err
	}
	record(ctx, s.events, s.logger, domain.NewEvent(teamID, domain.AggregateTeam, teamID, domain.EventTeamStatusChanged, map[string]domain.TeamStatus{"status": status}))
	return team, nil
}

// RequireActive returns ErrForbidden unless the team exists and is active.
func (s *TenantService) RequireActive(ctx context.Context, teamID string) error {
	team, err := s.Get(ctx, teamID)
	if err != nil {
		return err
	}
	if team.Status != domain.TeamActive {
		return domain.ErrForbidden(fmt.Sprintf("team %s is inactive", team.Name))
	}
	return nil
}
