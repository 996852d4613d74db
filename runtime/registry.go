package runtime

import (
	"context"
	"fmt"
	"group-chat/contract"
	"group-chat/domain"
	"group-chat/errors"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Ensure *Registry implements the contract.IRegistry interface at compile time.
var _ contract.IRegistry = (*Registry)(nil)

type Set map[domain.ConnectionID]struct{}

// bindings is the connection set of one group. It carries its own lock so binds
// on different groups never contend with each other.
type bindings struct {
	mu          sync.RWMutex
	connections Set
}

func newBindings() *bindings {
	return &bindings{connections: make(Set)}
}

func (b *bindings) add(connectionID domain.ConnectionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[connectionID] = struct{}{}
}

func (b *bindings) remove(connectionID domain.ConnectionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, connectionID)
}

func (b *bindings) contains(connectionID domain.ConnectionID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.connections[connectionID]
	return ok
}

func (b *bindings) snapshot() []domain.ConnectionID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return lo.Keys(b.connections)
}

// Registry is the process-wide map of group -> live connections, plus the directory of
// every connection currently known to the process.
//
// It never talks to the network: delivery happens through the contract.Connection values
// it hands out. Bindings are only approximately consistent with the store: a connection is
// bound after its membership has been read or written, never transactionally with it.
type Registry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	groups      map[domain.GroupID]*bindings
	sessions    map[domain.ConnectionID]contract.Connection
	groupSource contract.IGroupRepository
}

func NewRegistry(log *slog.Logger, groupSource contract.IGroupRepository) *Registry {
	return &Registry{
		log:         log,
		groups:      make(map[domain.GroupID]*bindings),
		sessions:    make(map[domain.ConnectionID]contract.Connection),
		groupSource: groupSource,
	}
}

// Initialize rebuilds the group map from the store: one empty set per persisted group.
// Existing bindings are dropped, connections stay in the directory and are bound again
// on their next membership check.
func (r *Registry) Initialize(ctx context.Context) error {
	groupIDs, err := r.groupSource.ListGroupIDs(ctx)
	if err != nil {
		return fmt.Errorf("registry initialization: %w", err)
	}
	groups := make(map[domain.GroupID]*bindings, len(groupIDs))
	for _, groupID := range groupIDs {
		groups[groupID] = newBindings()
	}

	r.mu.Lock()
	r.groups = groups
	r.mu.Unlock()

	r.log.Info("Registry initialized", "groups", len(groupIDs))
	return nil
}

// RegisterGroup creates an empty binding set, no-op when the group is already known.
func (r *Registry) RegisterGroup(groupID domain.GroupID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[groupID]; ok {
		return
	}
	r.groups[groupID] = newBindings()
}

// BindConnection adds the connection to the group's set. Binding twice is harmless.
// A connection missing from the directory is skipped: it has been removed already and
// nothing would ever unbind it again.
func (r *Registry) BindConnection(groupID domain.GroupID, connectionID domain.ConnectionID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.groups[groupID]
	if !ok {
		return fmt.Errorf("bind %s: %w", groupID, errors.ErrGroupNotFound)
	}
	if _, live := r.sessions[connectionID]; !live {
		r.log.Debug("Bind skipped, connection is gone", "group_id", groupID, "connection_id", connectionID)
		return nil
	}
	b.add(connectionID)
	return nil
}

func (r *Registry) IsBound(groupID domain.GroupID, connectionID domain.ConnectionID) bool {
	b, ok := r.group(groupID)
	if !ok {
		return false
	}
	return b.contains(connectionID)
}

func (r *Registry) GroupExists(groupID domain.GroupID) bool {
	_, ok := r.group(groupID)
	return ok
}

func (r *Registry) group(groupID domain.GroupID) (*bindings, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.groups[groupID]
	return b, ok
}

// AddConnection makes the connection reachable by global broadcasts and group fan-out.
func (r *Registry) AddConnection(conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[conn.ID()] = conn
}

// RemoveConnection forgets the connection and unbinds it from every group.
func (r *Registry) RemoveConnection(connectionID domain.ConnectionID) {
	r.mu.Lock()
	delete(r.sessions, connectionID)
	groups := lo.Values(r.groups)
	r.mu.Unlock()

	for _, b := range groups {
		b.remove(connectionID)
	}
}

// ConnectionsFor resolves the group's bound connection ids into live connections.
// Ids that are bound but no longer in the directory are skipped.
func (r *Registry) ConnectionsFor(groupID domain.GroupID) []contract.Connection {
	b, ok := r.group(groupID)
	if !ok {
		return nil
	}
	ids := b.snapshot()

	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []contract.Connection
	for _, id := range ids {
		if conn, exists := r.sessions[id]; exists {
			active = append(active, conn)
		}
	}
	return active
}

func (r *Registry) ConnectionsOfUser(userID domain.UserID) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(lo.Values(r.sessions), func(conn contract.Connection, _ int) bool {
		return conn.UserID() == userID
	})
}

func (r *Registry) Connections() []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

type Stats struct {
	Groups      int
	Connections int
	Bindings    int
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	groups := lo.Values(r.groups)
	stats := Stats{Groups: len(r.groups), Connections: len(r.sessions)}
	r.mu.RUnlock()

	for _, b := range groups {
		stats.Bindings += len(b.snapshot())
	}
	return stats
}
