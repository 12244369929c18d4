package auth

import "github.com/teamsheet/platform/internal/domain"

// ManagerRoles returns the player roles that may edit roster, matches and payments.
func ManagerRoles() []string {
	return []string{string(domain.RoleCaptain), string(domain.RoleAdmin)}
}

// AllRoles returns every player role.
func AllRoles() []string {
	return []string{
		string(domain.RolePlayer),
		string(domain.RoleCaptain),
		string(domain.RoleAdmin),
		string(domain.RoleCoach),
		string(domain.RoleStaff),
	}
}
