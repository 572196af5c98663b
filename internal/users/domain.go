package users

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

// User is a login account. StationIDs scopes station-bound roles; the
// administrator, developer and group owner roles ignore the scope.
type User struct {
	ID           uuid.UUID
	Username     string
	Name         string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
	StationIDs   []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthUser converts the account into its session identity.
func (u User) AuthUser() shared.AuthUser {
	return shared.AuthUser{
		ID:         u.ID,
		Name:       u.Name,
		Role:       u.Role,
		StationIDs: u.StationIDs,
	}
}

var (
	// ErrNotFound indicates a missing user account.
	ErrNotFound = errors.New("users: not found")
	// ErrUsernameTaken indicates a duplicate username.
	ErrUsernameTaken = errors.New("users: username already taken")
	// ErrUnknownRole indicates a role outside the known set.
	ErrUnknownRole = errors.New("users: unknown role")
)

// ValidRole reports whether the role belongs to the known set.
func ValidRole(role shared.Role) bool {
	switch role {
	case shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOperator, shared.RoleUnloader,
		shared.RoleOwner, shared.RoleOwnerGroup:
		return true
	}
	return false
}
