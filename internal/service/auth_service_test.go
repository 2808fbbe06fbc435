package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
	"github.com/xxxsen/dshare/internal/pkg/jwt"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, SessionOptions{})
	ctx := context.Background()

	user, token, err := env.auth.Register(ctx, " Alice@Example.com ", "password1")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.False(t, user.IsSuperuser)
	claims, err := jwt.ParseToken(token, []byte("test-secret"))
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)

	_, _, err = env.auth.Register(ctx, "alice@example.com", "password2")
	require.ErrorIs(t, err, appErr.ErrConflict)

	logged, _, err := env.auth.Login(ctx, "ALICE@example.com", "password1")
	require.NoError(t, err)
	require.Equal(t, user.ID, logged.ID)

	_, _, err = env.auth.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
	_, _, err = env.auth.Login(ctx, "bob@example.com", "password1")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, SessionOptions{})
	ctx := context.Background()

	_, _, err := env.auth.Register(ctx, "not-an-email", "password1")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, _, err = env.auth.Register(ctx, "a@example.com", "short")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestRegisterSuperuser(t *testing.T) {
	env := newTestEnv(t, SessionOptions{})
	user, _, err := env.auth.Register(context.Background(), "root@example.com", "password1")
	require.NoError(t, err)
	require.True(t, user.IsSuperuser)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, SessionOptions{})
	env.addUser("u1", "org1", true, false)
	ctx := context.Background()

	user, err := env.auth.Authenticate(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "org1", user.OrgID)
	require.True(t, user.IsOrgAdmin)

	_, err = env.auth.Authenticate(ctx, "ghost")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
}

func TestOrganizationFlow(t *testing.T) {
	env := newTestEnv(t, SessionOptions{})
	founder := env.addUser("u1", "", false, false)
	env.addUser("u2", "", false, false)
	env.addUser("u3", "other", false, false)
	ctx := context.Background()

	_, err := env.orgs.Create(ctx, founder, " ")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	org, err := env.orgs.Create(ctx, founder, "Acme")
	require.NoError(t, err)

	admin, err := env.auth.Authenticate(ctx, founder.ID)
	require.NoError(t, err)
	require.Equal(t, org.ID, admin.OrgID)
	require.True(t, admin.IsOrgAdmin)

	_, err = env.orgs.Create(ctx, admin, "Second")
	require.ErrorIs(t, err, appErr.ErrConflict)

	member, err := env.orgs.AddMember(ctx, admin, "U2@example.com")
	require.NoError(t, err)
	require.Equal(t, org.ID, member.OrgID)
	again, err := env.orgs.AddMember(ctx, admin, "u2@example.com")
	require.NoError(t, err)
	require.Equal(t, member.ID, again.ID)

	_, err = env.orgs.AddMember(ctx, admin, "u3@example.com")
	require.ErrorIs(t, err, appErr.ErrConflict)
	_, err = env.orgs.AddMember(ctx, admin, "nobody@example.com")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	plain, err := env.auth.Authenticate(ctx, member.ID)
	require.NoError(t, err)
	_, err = env.orgs.AddMember(ctx, plain, "u1@example.com")
	require.ErrorIs(t, err, appErr.ErrPermission)
}
