package domain

import (
	"fmt"
	"strconv"
)

// Role is a player's role inside the team.
type Role string

const (
	RolePlayer  Role = "PLAYER"
	RoleCaptain Role = "CAPTAIN"
	RoleAdmin   Role = "ADMIN"
	RoleCoach   Role = "COACH"
	RoleStaff   Role = "STAFF"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleCaptain, RoleAdmin, RoleCoach, RoleStaff:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to the technical staff. Staff never
// split the court fee.
func (r Role) IsStaff() bool {
	return r == RoleCoach || r == RoleStaff
}

// CanManage reports whether the role may edit roster, matches and payments.
func (r Role) CanManage() bool {
	return r == RoleCaptain || r == RoleAdmin
}

// Player is a roster member, stored at players/{id}.
type Player struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Nickname     string         `json:"nickname"`
	Number       int            `json:"number"`
	Position     string         `json:"position"`
	PhotoURL     string         `json:"photoUrl"`
	Phone        string         `json:"phone"`
	PINHash      string         `json:"pinHash,omitempty"`
	Role         Role           `json:"role"`
	SkillLevel   int            `json:"skillLevel"`
	GameAttempts map[string]int `json:"gameAttempts,omitempty"`
	AttemptsDate string         `json:"attemptsDate,omitempty"`
}

// DocID returns the store document id.
func (p Player) DocID() string { return strconv.FormatInt(p.ID, 10) }

// DisplayName prefers the nickname.
func (p Player) DisplayName() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.Name
}

// Validate checks the fields required before a player is written.
func (p Player) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("player id must be positive")
	}
	if p.Name == "" {
		return fmt.Errorf("player name is required")
	}
	if !p.Role.Valid() {
		return fmt.Errorf("invalid role: %q", p.Role)
	}
	if p.SkillLevel < 0 || p.SkillLevel > 5 {
		return fmt.Errorf("skill level must be between 0 and 5, got %d", p.SkillLevel)
	}
	return nil
}

// PlayerIndex maps player ids to players.
func PlayerIndex(players []Player) map[int64]Player {
	idx := make(map[int64]Player, len(players))
	for _, p := range players {
		idx[p.ID] = p
	}
	return idx
}
