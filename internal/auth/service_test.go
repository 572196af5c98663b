package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/users"
)

type fakeUsers struct {
	byUsername map[string]users.User
}

func (f *fakeUsers) FindByUsername(ctx context.Context, username string) (users.User, error) {
	u, ok := f.byUsername[username]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func seedUser(t *testing.T, username, password string, active bool) users.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return users.User{
		ID:           uuid.New(),
		Username:     username,
		Name:         "Budi",
		PasswordHash: string(hash),
		Role:         shared.RoleManager,
		IsActive:     active,
	}
}

func TestAuthenticate(t *testing.T) {
	account := seedUser(t, "budi", "rahasia-123", true)
	svc := NewService(&fakeUsers{byUsername: map[string]users.User{"budi": account}})

	user, err := svc.Authenticate(context.Background(), "budi", "rahasia-123")
	require.NoError(t, err)
	require.Equal(t, account.ID, user.ID)
	require.Equal(t, shared.RoleManager, user.Role)
}

func TestAuthenticateFailuresCollapse(t *testing.T) {
	active := seedUser(t, "budi", "rahasia-123", true)
	inactive := seedUser(t, "siti", "rahasia-123", false)
	svc := NewService(&fakeUsers{byUsername: map[string]users.User{
		"budi": active,
		"siti": inactive,
	}})

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"unknown user", "tidak-ada", "rahasia-123"},
		{"wrong password", "budi", "salah-semua"},
		{"inactive account", "siti", "rahasia-123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tc.username, tc.password)
			require.ErrorIs(t, err, shared.ErrInvalidCredentials)
		})
	}
}
