package storage

import (
	"group-chat/domain"
	"sync"
)

// groupLocks serializes the read-modify-write cycles on a group record, so concurrent
// writers of the same group queue up instead of failing on transaction conflicts.
// An entry lives only while somebody holds or waits for it.
type groupLocks struct {
	mu    sync.Mutex
	locks map[domain.GroupID]*groupLock
}

type groupLock struct {
	sync.Mutex
	refs int
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[domain.GroupID]*groupLock)}
}

// lock blocks until the caller owns the group, the returned func releases it.
func (l *groupLocks) lock(groupID domain.GroupID) func() {
	l.mu.Lock()
	entry, ok := l.locks[groupID]
	if !ok {
		entry = &groupLock{}
		l.locks[groupID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		l.mu.Lock()
		defer l.mu.Unlock()
		if entry.refs--; entry.refs == 0 {
			delete(l.locks, groupID)
		}
	}
}
