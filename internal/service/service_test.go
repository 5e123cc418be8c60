package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"capitol-watch/internal/repository/sqlite"
	"capitol-watch/internal/service"
)

func newServices(t *testing.T) (service.UserService, service.FollowService) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	users := sqlite.NewUserRepository(db)
	require.NoError(t, users.Init(ctx))
	follows := sqlite.NewFollowRepository(db)
	require.NoError(t, follows.Init(ctx))

	return service.NewUserServiceWithCost(users, bcrypt.MinCost), service.NewFollowService(follows)
}

func TestRegisterTwice(t *testing.T) {
	users, _ := newServices(t)
	ctx := context.Background()

	user, err := users.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash, "hash must not leave the service")

	_, err = users.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, service.ErrUserAlreadyExists)
}

func TestRegisterRequiresCredentials(t *testing.T) {
	users, _ := newServices(t)

	_, err := users.Register(context.Background(), "  ", "pw")
	assert.ErrorIs(t, err, service.ErrMissingCredentials)

	_, err = users.Register(context.Background(), "bob", "")
	assert.ErrorIs(t, err, service.ErrMissingCredentials)
}

func TestRegisterAcceptsShortPassword(t *testing.T) {
	users, _ := newServices(t)

	_, err := users.Register(context.Background(), "bob", "x")
	assert.NoError(t, err)
}

func TestValidateLogin(t *testing.T) {
	users, _ := newServices(t)
	ctx := context.Background()

	registered, err := users.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	user, err := users.ValidateLogin(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = users.ValidateLogin(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = users.ValidateLogin(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = users.ValidateLogin(ctx, "", "")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestValidateLoginUsesExactUsername(t *testing.T) {
	users, _ := newServices(t)
	ctx := context.Background()

	_, err := users.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = users.ValidateLogin(ctx, " alice", "secret")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = users.ValidateLogin(ctx, "Alice", "secret")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestGetByID(t *testing.T) {
	users, _ := newServices(t)
	ctx := context.Background()

	registered, err := users.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	got, err := users.GetByID(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, got.PasswordHash)
}

func TestFollowAndList(t *testing.T) {
	users, follows := newServices(t)
	ctx := context.Background()

	_, err := users.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	require.NoError(t, follows.Follow(ctx, "alice", "Nancy Pelosi"))
	require.NoError(t, follows.Follow(ctx, "alice", " Tommy Tuberville "))
	require.NoError(t, follows.Follow(ctx, "alice", "Nancy Pelosi"))

	names, err := follows.ListFollowed(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nancy Pelosi", "Tommy Tuberville"}, names)
}

func TestListFollowedEmpty(t *testing.T) {
	users, follows := newServices(t)
	ctx := context.Background()

	_, err := users.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	names, err := follows.ListFollowed(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	names, err = follows.ListFollowed(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFollowFailures(t *testing.T) {
	_, follows := newServices(t)
	ctx := context.Background()

	assert.ErrorIs(t, follows.Follow(ctx, "", "Nancy Pelosi"), service.ErrInvalidFollow)
	assert.ErrorIs(t, follows.Follow(ctx, "alice", ""), service.ErrInvalidFollow)
	assert.ErrorIs(t, follows.Follow(ctx, "ghost", "Nancy Pelosi"), service.ErrUnknownUser)
}

func TestUnfollow(t *testing.T) {
	users, follows := newServices(t)
	ctx := context.Background()

	_, err := users.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	require.NoError(t, follows.Follow(ctx, "alice", "Nancy Pelosi"))

	require.NoError(t, follows.Unfollow(ctx, "alice", "Nancy Pelosi"))
	assert.ErrorIs(t, follows.Unfollow(ctx, "alice", "Nancy Pelosi"), service.ErrNotFollowing)

	names, err := follows.ListFollowed(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, names)
}
