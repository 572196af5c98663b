package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages user accounts.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the users service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetUser returns one account.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// CreateUserInput describes a new account.
type CreateUserInput struct {
	Username   string
	Name       string
	Password   string
	Role       shared.Role
	StationIDs []uuid.UUID
	Actor      shared.AuthUser
}

// CreateUser stores a new active account with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (User, error) {
	if !ValidRole(input.Role) {
		return User{}, ErrUnknownRole
	}
	if len(input.Password) < 8 {
		return User{}, errors.New("users: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:           uuid.New(),
		Username:     input.Username,
		Name:         input.Name,
		PasswordHash: string(hash),
		Role:         input.Role,
		IsActive:     true,
		StationIDs:   input.StationIDs,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, input.Actor.ID, "user.create", user.ID.String(), map[string]any{
		"username": user.Username,
		"role":     string(user.Role),
	})
	return user, nil
}

// SetActive toggles an account. Deactivation keeps the row so audit and
// approval history stay resolvable.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool, actor shared.AuthUser) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	action := "user.deactivate"
	if active {
		action = "user.activate"
	}
	s.recordAudit(ctx, actor.ID, action, id.String(), nil)
	return nil
}

// ChangePassword replaces the bcrypt hash.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, password string, actor shared.AuthUser) error {
	if len(password) < 8 {
		return errors.New("users: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SetPasswordHash(ctx, id, string(hash)); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "user.password", id.String(), nil)
	return nil
}

// AssignStations replaces the account's station scope.
func (s *Service) AssignStations(ctx context.Context, id uuid.UUID, stationIDs []uuid.UUID, actor shared.AuthUser) error {
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.repo.ReplaceStations(ctx, id, stationIDs); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "user.stations", id.String(), map[string]any{"count": len(stationIDs)})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "users",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}
