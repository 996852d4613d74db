package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func (l *groupLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func TestGroupLocks_Serialize_Same_Group_Only(t *testing.T) {
	req := require.New(t)
	locks := newGroupLocks()

	// Given g1 is held
	unlock := locks.lock("g1")

	// Then another group can still be taken
	locks.lock("g2")()

	// And a second writer of g1 waits for the release
	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		release := locks.lock("g1")
		close(acquired)
		release()
	}()
	req.Never(func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	unlock()
	wg.Wait()
	req.Zero(locks.held())
}
