package storage

import (
	"context"
	"fmt"
	"group-chat/domain"
	"group-chat/errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRepositories(t *testing.T, limitMessages *int) (*UserRepository, *GroupRepository) {
	db := openDB(t)
	groups, err := NewGroupRepository(db, slog.Default(), limitMessages)
	require.NoError(t, err)
	t.Cleanup(func() { _ = groups.Close() })
	return NewUserRepository(db, slog.Default()), groups
}

func createUsers(t *testing.T, users *UserRepository, ids ...domain.UserID) {
	for _, id := range ids {
		require.NoError(t, users.CreateUser(context.Background(), domain.User{
			ID:        id,
			Name:      string(id),
			Role:      domain.RoleUser,
			CreatedAt: time.Now(),
		}))
	}
}

func TestGroupRepository_CreateGroup_Indexes_Owner(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users, groups := newRepositories(t, nil)
	createUsers(t, users, "alice")

	// Given a group created by alice
	group := domain.NewGroup("g1", "Team", "the team", "alice", true, time.Now())
	req.NoError(groups.CreateGroup(ctx, group))

	// When loading it back
	fetched, err := groups.GetGroup(ctx, "g1")

	// Then every field survived and alice sees the group
	req.NoError(err)
	req.Equal(group.Name, fetched.Name)
	req.Equal(group.Description, fetched.Description)
	req.Equal(domain.UserID("alice"), fetched.OwnerID)
	req.True(fetched.Private)
	req.Equal([]domain.UserID{"alice"}, fetched.Members)
	req.True(group.CreatedAt.Equal(fetched.CreatedAt))

	alice, err := users.GetUser(ctx, "alice")
	req.NoError(err)
	req.Equal([]domain.GroupID{"g1"}, alice.Groups)

	ids, err := groups.ListGroupIDs(ctx)
	req.NoError(err)
	req.Equal([]domain.GroupID{"g1"}, ids)
}

func TestGroupRepository_CreateGroup_Unknown_Owner(t *testing.T) {
	req := require.New(t)
	_, groups := newRepositories(t, nil)

	err := groups.CreateGroup(context.Background(), domain.NewGroup("g1", "Team", "", "ghost", true, time.Now()))

	req.ErrorIs(err, errors.ErrUserNotFound)
	_, err = groups.GetGroup(context.Background(), "g1")
	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func TestGroupRepository_Invite_Then_Join(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users, groups := newRepositories(t, nil)
	createUsers(t, users, "alice", "bob")
	req.NoError(groups.CreateGroup(ctx, domain.NewGroup("g1", "Team", "", "alice", true, time.Now())))

	// Given bob is not invited
	_, err := groups.JoinGroup(ctx, "g1", "bob")
	req.ErrorIs(err, errors.ErrNotInvited)

	// When alice invites him
	group, err := groups.InviteUser(ctx, "g1", "bob")
	req.NoError(err)
	req.Equal([]domain.UserID{"bob"}, group.Invited)

	bob, err := users.GetUser(ctx, "bob")
	req.NoError(err)
	req.True(bob.IsInvitedTo("g1"))
	req.Empty(bob.Groups)

	// Then he can join, and the invitation is consumed
	group, err = groups.JoinGroup(ctx, "g1", "bob")
	req.NoError(err)
	req.ElementsMatch([]domain.UserID{"alice", "bob"}, group.Members)
	req.Empty(group.Invited)

	bob, err = users.GetUser(ctx, "bob")
	req.NoError(err)
	req.Equal([]domain.GroupID{"g1"}, bob.Groups)
	req.Empty(bob.Invitations)

	// And joining twice is redundant
	_, err = groups.JoinGroup(ctx, "g1", "bob")
	req.ErrorIs(err, errors.ErrAlreadyInGroup)
}

func TestGroupRepository_Invite_Errors(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users, groups := newRepositories(t, nil)
	createUsers(t, users, "alice", "bob")
	req.NoError(groups.CreateGroup(ctx, domain.NewGroup("g1", "Team", "", "alice", true, time.Now())))

	_, err := groups.InviteUser(ctx, "missing", "bob")
	req.ErrorIs(err, errors.ErrGroupNotFound)

	_, err = groups.InviteUser(ctx, "g1", "ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = groups.InviteUser(ctx, "g1", "alice")
	req.ErrorIs(err, errors.ErrAlreadyInGroup)

	_, err = groups.InviteUser(ctx, "g1", "bob")
	req.NoError(err)
	_, err = groups.InviteUser(ctx, "g1", "bob")
	req.ErrorIs(err, errors.ErrAlreadyInvited)
}

func TestGroupRepository_Concurrent_Joins_Are_All_Persisted(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users, groups := newRepositories(t, nil)
	createUsers(t, users, "alice")
	req.NoError(groups.CreateGroup(ctx, domain.NewGroup("lobby", "Lobby", "", "alice", false, time.Now())))

	joiners := lo.Times(50, func(i int) domain.UserID { return domain.UserID(fmt.Sprintf("user-%d", i)) })
	createUsers(t, users, joiners...)

	// When everybody joins the public group at once, while alice keeps talking in it
	var wg sync.WaitGroup
	errs := make(chan error, 2*len(joiners))
	for _, userID := range joiners {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := groups.JoinGroup(ctx, "lobby", userID)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := groups.AppendMessage(ctx, domain.Message{ID: uuid.New(), GroupID: "lobby", SenderID: "alice", Text: "hi", CreatedAt: time.Now()})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// Then every write went through and every join is persisted
	for err := range errs {
		req.NoError(err)
	}
	group, err := groups.GetGroup(ctx, "lobby")
	req.NoError(err)
	req.Len(group.Members, len(joiners)+1)
	for _, userID := range joiners {
		u, err := users.GetUser(ctx, userID)
		req.NoError(err)
		req.True(group.HasMember(userID))
		req.Equal([]domain.GroupID{"lobby"}, u.Groups)
	}
	messages, _, err := groups.GetMessages(ctx, "lobby", nil)
	req.NoError(err)
	req.Len(messages, len(joiners))
	req.Zero(groups.locks.held())
}

func TestUpdate_Gives_Up_When_Context_Ends(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// When the transaction keeps conflicting
	attempts := 0
	err := update(ctx, db, func(*badger.Txn) error {
		attempts++
		return badger.ErrConflict
	})

	// Then it is retried until the context ends
	req.ErrorIs(err, errors.ErrTxnRetryExhausted)
	req.ErrorIs(err, context.DeadlineExceeded)
	req.Greater(attempts, 1)
}

func TestGroupRepository_GetUserGroups_With_Last_Message(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users, groups := newRepositories(t, nil)
	createUsers(t, users, "alice")
	req.NoError(groups.CreateGroup(ctx, domain.NewGroup("g1", "Team", "", "alice", true, time.Now())))
	req.NoError(groups.CreateGroup(ctx, domain.NewGroup("g2", "Empty", "", "alice", true, time.Now())))

	// Given two messages in g1, the second one sharing the timestamp of the first
	at := time.Now().UTC()
	_, err := groups.AppendMessage(ctx, domain.Message{ID: uuid.New(), GroupID: "g1", SenderID: "alice", Text: "first", CreatedAt: at})
	req.NoError(err)
	_, err = groups.AppendMessage(ctx, domain.Message{ID: uuid.New(), GroupID: "g1", SenderID: "alice", Text: "second", CreatedAt: at})
	req.NoError(err)

	// When loading alice's groups
	summaries, err := groups.GetUserGroups(ctx, "alice")
	req.NoError(err)

	// Then g1 carries its most recent message and g2 carries none
	req.Len(summaries, 2)
	byID := lo.KeyBy(summaries, func(s domain.GroupSummary) domain.GroupID { return s.Group.ID })
	req.NotNil(byID["g1"].LastMessage)
	req.Equal("second", byID["g1"].LastMessage.Text)
	req.Nil(byID["g2"].LastMessage)
}

func TestGroupRepository_AppendMessage_Unknown_Group(t *testing.T) {
	req := require.New(t)
	_, groups := newRepositories(t, nil)

	_, err := groups.AppendMessage(context.Background(), domain.Message{ID: uuid.New(), GroupID: "missing", Text: "hello", CreatedAt: time.Now()})

	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func TestGroupRepository_GetMessages_Pagination(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	limit := 2
	users, groups := newRepositories(t, &limit)
	createUsers(t, users, "alice")
	req.NoError(groups.CreateGroup(ctx, domain.NewGroup("g1", "Team", "", "alice", true, time.Now())))
	req.NoError(groups.CreateGroup(ctx, domain.NewGroup("g10", "Noise", "", "alice", true, time.Now())))

	now := time.Now().UTC()
	for i := 1; i <= 5; i++ {
		_, err := groups.AppendMessage(ctx, domain.Message{
			ID:        uuid.New(),
			GroupID:   "g1",
			SenderID:  "alice",
			Text:      fmt.Sprintf("Message %d", i),
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
	}
	_, err := groups.AppendMessage(ctx, domain.Message{ID: uuid.New(), GroupID: "g10", Text: "other group", CreatedAt: now.Add(time.Hour)})
	req.NoError(err)

	// --- PAGE 1 ---
	page1, cursor1, err := groups.GetMessages(ctx, "g1", nil)
	req.NoError(err)
	req.Equal([]string{"Message 5", "Message 4"}, texts(page1))
	req.NotNil(cursor1)

	// --- PAGE 2 ---
	page2, cursor2, err := groups.GetMessages(ctx, "g1", cursor1)
	req.NoError(err)
	req.Equal([]string{"Message 3", "Message 2"}, texts(page2))
	req.NotNil(cursor2)

	// --- PAGE 3 ---
	page3, cursor3, err := groups.GetMessages(ctx, "g1", cursor2)
	req.NoError(err)
	req.Equal([]string{"Message 1"}, texts(page3))
	req.Nil(cursor3)
}

func texts(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.Text })
}
