package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gamehub/internal/auth"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	PasswordParams = &auth.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newUser(t *testing.T, users UserStore, email, username string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Username: username, Password: "hunter22"}
	require.NoError(t, users.CreateUser(context.Background(), u))
	return u
}

func TestMemoryUserStore(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserStore()

	u := newUser(t, users, " Alice@Example.com ", "alice")
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "hunter22", u.Password, "password must be stored hashed")

	err := users.CreateUser(ctx, &models.User{Email: "alice@example.com", Username: "other", Password: "x"})
	assert.ErrorIs(t, err, ErrUserExists)
	err = users.CreateUser(ctx, &models.User{Email: "b@example.com", Username: "ALICE", Password: "x"})
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = users.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthenticateUser(t *testing.T) {
	require.NoError(t, auth.Init("1h"))
	ctx := context.Background()
	users := NewMemoryUserStore()
	u := newUser(t, users, "bob@example.com", "bob")

	got, token, err := AuthenticateUser(ctx, users, "BOB@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	sub, err := auth.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), sub)

	_, _, err = AuthenticateUser(ctx, users, "bob@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = AuthenticateUser(ctx, users, "ghost@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMemoryRoomRegistry(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserStore()
	owner := newUser(t, users, "owner@example.com", "owner")
	reg := NewMemoryRoomRegistry(users)

	none, err := reg.GetByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	pr, err := reg.UpsertForOwner(ctx, owner.ID, "Den", models.GameConnect4, 4)
	require.NoError(t, err)
	assert.True(t, pr.IsActive)

	again, err := reg.UpsertForOwner(ctx, owner.ID, "Lair", models.GameHangman, 6)
	require.NoError(t, err)
	assert.Equal(t, pr.ID, again.ID, "identity is stable per owner")
	assert.Equal(t, "Lair", again.Name)
	assert.Equal(t, models.GameHangman, again.GameID)

	require.NoError(t, reg.UpdateName(ctx, pr.ID, owner.ID, "Burrow"))
	require.NoError(t, reg.UpdateName(ctx, uuid.New(), owner.ID, "Ignored"))
	got, err := reg.GetByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Burrow", got.Name)

	public, err := reg.ListPublic(ctx, []uuid.UUID{owner.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "owner", public[0].OwnerUsername)

	require.NoError(t, reg.Deactivate(ctx, owner.ID))
	public, err = reg.ListPublic(ctx, []uuid.UUID{owner.ID})
	require.NoError(t, err)
	assert.Empty(t, public)

	require.NoError(t, reg.Activate(ctx, owner.ID))
	got, err = reg.GetByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "postgres://u:p%40ss@db:5433/gamehub", URL("u", "p@ss", "db", 5433, "gamehub"))
}
