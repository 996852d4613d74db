package storage

import (
	"context"
	"group-chat/domain"
	"group-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users, _ := newRepositories(t, nil)
	user := domain.User{ID: "alice", Name: "Alice", Role: domain.RoleAdmin, CreatedAt: time.Now()}

	req.NoError(users.CreateUser(ctx, user))

	fetched, err := users.GetUser(ctx, "alice")
	req.NoError(err)
	req.Equal("Alice", fetched.Name)
	req.Equal(domain.RoleAdmin, fetched.Role)
	req.WithinDuration(user.CreatedAt, fetched.CreatedAt, 0)
	req.Empty(fetched.Groups)
	req.Empty(fetched.Invitations)
}

func TestUserRepository_Create_Twice(t *testing.T) {
	req := require.New(t)
	users, _ := newRepositories(t, nil)
	createUsers(t, users, "alice")

	err := users.CreateUser(context.Background(), domain.User{ID: "alice"})

	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_Rejects_Ids_Clashing_With_Index_Keys(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users, groups := newRepositories(t, nil)
	createUsers(t, users, "al")
	req.NoError(groups.CreateGroup(ctx, domain.NewGroup("g1", "Team", "", "al", true, time.Now())))

	// When an id would extend the index prefix of "al"
	for _, id := range []domain.UserID{"al:g1", "al:", ""} {
		err := users.CreateUser(ctx, domain.User{ID: id, Name: "x"})
		req.ErrorIs(err, errors.ErrInvalidUserID)
		req.ErrorIs(err, errors.ErrBadRequest)
	}

	// Then "al" still only sees its own group
	al, err := users.GetUser(ctx, "al")
	req.NoError(err)
	req.Equal([]domain.GroupID{"g1"}, al.Groups)
}

func TestUserRepository_Get_Unknown(t *testing.T) {
	req := require.New(t)
	users, _ := newRepositories(t, nil)

	_, err := users.GetUser(context.Background(), "ghost")

	req.ErrorIs(err, errors.ErrUserNotFound)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestUserRepository_GetUsers_Skips_Unknown(t *testing.T) {
	req := require.New(t)
	users, _ := newRepositories(t, nil)
	createUsers(t, users, "alice", "bob")

	found, err := users.GetUsers(context.Background(), []domain.UserID{"alice", "ghost", "bob", "alice"})

	req.NoError(err)
	req.Len(found, 2)
	req.Equal("bob", found["bob"].Name)
}

func TestUserRepository_Similar_Ids_Do_Not_Share_Memberships(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users, groups := newRepositories(t, nil)
	createUsers(t, users, "al", "alice")
	req.NoError(groups.CreateGroup(ctx, domain.NewGroup("g1", "Team", "", "alice", true, time.Now())))

	al, err := users.GetUser(ctx, "al")

	req.NoError(err)
	req.Empty(al.Groups)
}
