package shared

import (
	"github.com/google/uuid"
)

// Role enumerates the user roles known to the system.
type Role string

const (
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleDeveloper     Role = "DEVELOPER"
	RoleManager       Role = "MANAGER"
	RoleFinance       Role = "FINANCE"
	RoleOperator      Role = "OPERATOR"
	RoleUnloader      Role = "UNLOADER"
	RoleOwner         Role = "OWNER"
	RoleOwnerGroup    Role = "OWNER_GROUP"
)

// PrivilegedRoles may post purchases without a manager approval gate.
func PrivilegedRoles() []Role {
	return []Role{RoleAdministrator, RoleDeveloper, RoleOwner}
}

// AuthUser is the authenticated identity attached to a session.
type AuthUser struct {
	ID         uuid.UUID
	Name       string
	Role       Role
	StationIDs []uuid.UUID
}

// IsPrivileged reports whether the user bypasses manager approval gates.
func (u AuthUser) IsPrivileged() bool {
	for _, r := range PrivilegedRoles() {
		if u.Role == r {
			return true
		}
	}
	return false
}

// CanAccessStation reports whether the user is scoped to the gas station.
// Administrator, developer and group owners see every station.
func (u AuthUser) CanAccessStation(stationID uuid.UUID) bool {
	switch u.Role {
	case RoleAdministrator, RoleDeveloper, RoleOwnerGroup:
		return true
	}
	for _, id := range u.StationIDs {
		if id == stationID {
			return true
		}
	}
	return false
}

// RequireRoles checks the session's user against an allow-list of roles.
func RequireRoles(sess *Session, roles ...Role) (AuthUser, error) {
	if sess == nil || sess.User() == nil {
		return AuthUser{}, ErrUnauthenticated
	}
	user := *sess.User()
	for _, role := range roles {
		if user.Role == role {
			return user, nil
		}
	}
	return AuthUser{}, ErrForbidden
}

// RequireStationRoles additionally checks the user's gas station scope.
func RequireStationRoles(sess *Session, stationID uuid.UUID, roles ...Role) (AuthUser, error) {
	user, err := RequireRoles(sess, roles...)
	if err != nil {
		return AuthUser{}, err
	}
	if !user.CanAccessStation(stationID) {
		return AuthUser{}, ErrForbidden
	}
	return user, nil
}
