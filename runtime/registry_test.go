package runtime

import (
	"context"
	"fmt"
	"group-chat/domain"
	"group-chat/domain/event"
	"group-chat/errors"
	"group-chat/mocks"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type connection struct {
	id     domain.ConnectionID
	userID domain.UserID
}

func (c connection) ID() domain.ConnectionID { return c.id }

func (c connection) UserID() domain.UserID { return c.userID }

func (c connection) Send(_ context.Context, _ event.Envelope) error { return nil }

func newConnection(userID domain.UserID) connection {
	return connection{id: domain.ConnectionID(uuid.NewString()), userID: userID}
}

func newRegistry(t *testing.T, groupIDs ...domain.GroupID) *Registry {
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIGroupRepository(ctrl)
	repository.EXPECT().ListGroupIDs(gomock.Any()).Return(groupIDs, nil).AnyTimes()
	return NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug), repository)
}

func TestRegistry_Initialize_One_Set_Per_Persisted_Group(t *testing.T) {
	req := require.New(t)
	registry := newRegistry(t, "g1", "g2")

	// Given nothing is registered
	req.False(registry.GroupExists("g1"))

	// When the registry is initialized
	req.NoError(registry.Initialize(context.Background()))

	// Then each persisted group has an empty set
	req.True(registry.GroupExists("g1"))
	req.True(registry.GroupExists("g2"))
	req.False(registry.GroupExists("g3"))
	req.Empty(registry.ConnectionsFor("g1"))
}

func TestRegistry_Initialize_Is_A_Full_Rebuild(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := newRegistry(t, "g1")
	conn := newConnection("alice")
	registry.AddConnection(conn)

	// Given a bound connection and a group unknown to the store
	req.NoError(registry.Initialize(ctx))
	registry.RegisterGroup("ephemeral")
	req.NoError(registry.BindConnection("g1", conn.ID()))

	// When initializing twice
	req.NoError(registry.Initialize(ctx))
	req.NoError(registry.Initialize(ctx))

	// Then only persisted groups remain, with empty sets
	req.True(registry.GroupExists("g1"))
	req.False(registry.GroupExists("ephemeral"))
	req.False(registry.IsBound("g1", conn.ID()))

	// And the connection is still known for global broadcast
	req.Len(registry.Connections(), 1)
}

func TestRegistry_Initialize_Store_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIGroupRepository(ctrl)
	repository.EXPECT().ListGroupIDs(gomock.Any()).Return(nil, fmt.Errorf("badger closed")).Times(1)
	registry := NewRegistry(slog.Default(), repository)

	err := registry.Initialize(context.Background())

	req.Error(err)
	req.Contains(err.Error(), "badger closed")
}

func TestRegistry_RegisterGroup_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := newRegistry(t)
	conn := newConnection("alice")
	registry.AddConnection(conn)

	registry.RegisterGroup("g1")
	req.NoError(registry.BindConnection("g1", conn.ID()))

	// When registering again
	registry.RegisterGroup("g1")

	// Then existing bindings survive
	req.True(registry.IsBound("g1", conn.ID()))
}

func TestRegistry_BindConnection_Unknown_Group(t *testing.T) {
	req := require.New(t)
	registry := newRegistry(t)

	err := registry.BindConnection("missing", "c1")

	req.ErrorIs(err, errors.ErrGroupNotFound)
	req.False(registry.IsBound("missing", "c1"))
}

func TestRegistry_Bind_And_Resolve_Connections(t *testing.T) {
	req := require.New(t)
	registry := newRegistry(t)
	alice := newConnection("alice")
	bob := newConnection("bob")
	registry.AddConnection(alice)
	registry.AddConnection(bob)
	registry.RegisterGroup("g1")

	// When only alice is bound, twice
	req.NoError(registry.BindConnection("g1", alice.ID()))
	req.NoError(registry.BindConnection("g1", alice.ID()))

	// Then only alice is resolved for the group
	req.True(registry.IsBound("g1", alice.ID()))
	req.False(registry.IsBound("g1", bob.ID()))
	req.Len(registry.ConnectionsFor("g1"), 1)
	req.Equal(alice.ID(), registry.ConnectionsFor("g1")[0].ID())
	req.Len(registry.Connections(), 2)
	req.Len(registry.ConnectionsOfUser("bob"), 1)
}

func TestRegistry_RemoveConnection_Unbinds_Everywhere(t *testing.T) {
	req := require.New(t)
	registry := newRegistry(t)
	conn := newConnection("alice")
	registry.AddConnection(conn)
	registry.RegisterGroup("g1")
	registry.RegisterGroup("g2")
	req.NoError(registry.BindConnection("g1", conn.ID()))
	req.NoError(registry.BindConnection("g2", conn.ID()))

	// When the connection goes away
	registry.RemoveConnection(conn.ID())

	// Then it's neither bound nor known
	req.False(registry.IsBound("g1", conn.ID()))
	req.False(registry.IsBound("g2", conn.ID()))
	req.Empty(registry.Connections())
	req.Equal(Stats{Groups: 2, Connections: 0, Bindings: 0}, registry.Stats())
}

func TestRegistry_BindConnection_Skips_Removed_Connections(t *testing.T) {
	req := require.New(t)
	registry := newRegistry(t)
	registry.RegisterGroup("g1")
	conn := newConnection("alice")
	registry.AddConnection(conn)

	// Given the connection went away after its id was collected for binding
	registry.RemoveConnection(conn.ID())

	// When the late bind arrives
	req.NoError(registry.BindConnection("g1", conn.ID()))
	req.NoError(registry.BindConnection("g1", "ghost"))

	// Then nothing is left behind in the group
	req.False(registry.IsBound("g1", conn.ID()))
	req.False(registry.IsBound("g1", "ghost"))
	req.Empty(registry.ConnectionsFor("g1"))
	req.Equal(Stats{Groups: 1, Connections: 0, Bindings: 0}, registry.Stats())
}

func TestRegistry_Bind_Racing_Remove_Leaves_No_Binding(t *testing.T) {
	req := require.New(t)
	registry := newRegistry(t)
	registry.RegisterGroup("g1")

	const connections = 100
	var wg sync.WaitGroup
	for i := 0; i < connections; i++ {
		conn := newConnection("alice")
		registry.AddConnection(conn)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = registry.BindConnection("g1", conn.ID())
		}()
		go func() {
			defer wg.Done()
			registry.RemoveConnection(conn.ID())
		}()
	}
	wg.Wait()

	req.Equal(Stats{Groups: 1, Connections: 0, Bindings: 0}, registry.Stats())
}

func TestRegistry_Concurrent_Binds_Are_Never_Lost(t *testing.T) {
	req := require.New(t)
	registry := newRegistry(t)
	groups := []domain.GroupID{"g1", "g2", "g3"}
	for _, g := range groups {
		registry.RegisterGroup(g)
	}

	const connections = 200
	var wg sync.WaitGroup
	ids := make(chan domain.ConnectionID, connections)
	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := newConnection(domain.UserID(uuid.NewString()))
			registry.AddConnection(conn)
			for _, g := range groups {
				if err := registry.BindConnection(g, conn.ID()); err != nil {
					t.Error(err)
				}
			}
			ids <- conn.ID()
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		for _, g := range groups {
			req.True(registry.IsBound(g, id))
		}
	}
	for _, g := range groups {
		req.Len(registry.ConnectionsFor(g), connections)
	}
	req.Equal(Stats{Groups: 3, Connections: connections, Bindings: 3 * connections}, registry.Stats())
}
