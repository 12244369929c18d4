package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/guard"
	"github.com/teamsheet/platform/internal/repository"
)

// AuthService handles team entry and player PIN login.
type AuthService struct {
	tenants *TenantService
	adapter *repository.Adapter
	jwtMgr  *auth.JWTManager
	lockout *guard.Lockout
	limiter *guard.RateLimiter
	logger  *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	tenants *TenantService,
	adapter *repository.Adapter,
	jwtMgr *auth.JWTManager,
	lockout *guard.Lockout,
	limiter *guard.RateLimiter,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		tenants: tenants,
		adapter: adapter,
		jwtMgr:  jwtMgr,
		lockout: lockout,
		limiter: limiter,
		logger:  logger,
	}
}

// Session is returned on successful team entry or login.
type Session struct {
	Token    string     `json:"token"`
	Realm    auth.Realm `json:"realm"`
	TeamID   string     `json:"teamId,omitempty"`
	TeamName string     `json:"teamName,omitempty"`
	PlayerID int64      `json:"playerId,omitempty"`
	Role     string     `json:"role,omitempty"`
}

func (s *AuthService) throttle(ctx context.Context, clientKey string) error {
	if res := s.limiter.Check(ctx, clientKey); !res.Allowed {
		return &domain.AppError{
			Code:    "RATE_LIMITED",
			Message: fmt.Sprintf("too many attempts, try again in %s", res.RetryAfter.Round(time.Second)),
			Status:  429,
		}
	}
	return nil
}

// EnterTeam resolves a typed team name into a team token, or an admin token for
// the super-tenant code.
func (s *AuthService) EnterTeam(ctx context.Context, name, clientKey string) (*Session, error) {
	if err := s.throttle(ctx, "enter:"+clientKey); err != nil {
		return nil, err
	}
	res, err := s.tenants.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	if res.Admin {
		token, err := s.jwtMgr.GenerateToken(auth.RealmAdmin, "", 0, string(domain.RoleAdmin))
		if err != nil {
			return nil, domain.ErrInternal("generate token", err)
		}
		s.logger.Info("admin session opened")
		return &Session{Token: token, Realm: auth.RealmAdmin}, nil
	}

	token, err := s.jwtMgr.GenerateToken(auth.RealmTeam, res.Team.ID, 0, "")
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	return &Session{Token: token, Realm: auth.RealmTeam, TeamID: res.Team.ID, TeamName: res.Team.Name}, nil
}

// LoginInput holds the PIN login request fields.
type LoginInput struct {
	PlayerID int64  `json:"playerId"`
	PIN      string `json:"pin"`
}

// Login checks a player's PIN and returns a player token carrying their role.
// Repeated failures lock the player out for a while.
func (s *AuthService) Login(ctx context.Context, teamID string, input LoginInput, clientKey string) (*Session, error) {
	if err := s.throttle(ctx, "login:"+clientKey); err != nil {
		return nil, err
	}
	if err := domain.ValidatePIN(input.PIN); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	lockKey := fmt.Sprintf("%s:%d", teamID, input.PlayerID)
	if err := s.lockout.CheckLocked(lockKey); err != nil {
		return nil, err
	}

	player, err := repository.Get[domain.Player](ctx, s.adapter, teamID, domain.CollectionPlayers, strconv.FormatInt(input.PlayerID, 10))
	if domain.IsCode(err, "NOT_FOUND") {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if player.PINHash == "" {
		return nil, domain.ErrUnauthorized("no PIN set for this player, ask a captain")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(player.PINHash), []byte(input.PIN)); err != nil {
		s.lockout.RecordAttempt(lockKey, false)
		s.logger.Warn("pin login failed", "team_id", teamID, "player_id", input.PlayerID)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	s.lockout.RecordAttempt(lockKey, true)

	token, err := s.jwtMgr.GenerateToken(auth.RealmPlayer, teamID, player.ID, string(player.Role))
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	return &Session{
		Token:    token,
		Realm:    auth.RealmPlayer,
		TeamID:   teamID,
		PlayerID: player.ID,
		Role:     string(player.Role),
	}, nil
}
