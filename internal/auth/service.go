// Package auth validates credentials and owns the login and logout flow.
package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/users"
)

// UserPort resolves accounts by username.
type UserPort interface {
	FindByUsername(ctx context.Context, username string) (users.User, error)
}

// Service wraps authentication rules.
type Service struct {
	users UserPort
}

// NewService constructs a new Service.
func NewService(userPort UserPort) *Service {
	return &Service{users: userPort}
}

// Authenticate validates username/password credentials. Every failure path
// collapses to ErrInvalidCredentials so responses do not leak which part
// was wrong.
func (s *Service) Authenticate(ctx context.Context, username, password string) (shared.AuthUser, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return shared.AuthUser{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return shared.AuthUser{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return shared.AuthUser{}, shared.ErrInvalidCredentials
	}
	return user.AuthUser(), nil
}
