package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"group-chat/domain"
	"group-chat/errors"
	"math/rand/v2"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	minConflictBackoff = time.Millisecond
	maxConflictBackoff = 50 * time.Millisecond
)

// update runs fn in a read-write transaction, retrying it with a jittered backoff
// for as long as ctx allows when a concurrent transaction committed a conflicting write first.
func update(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	backoff := minConflictBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}

		timer := time.NewTimer(backoff/2 + rand.N(backoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%d attempts: %w: %w", attempt, errors.ErrTxnRetryExhausted, ctx.Err())
		case <-timer.C:
		}
		backoff = min(2*backoff, maxConflictBackoff)
	}
}

func view(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.View(fn)
}

// exists reports whether key is present, any other read error is returned as is.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// keysWithPrefix returns the key suffixes found under prefix, without fetching values.
func keysWithPrefix(txn *badger.Txn, prefix []byte) []string {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	var suffixes []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		suffixes = append(suffixes, string(it.Item().Key()[len(prefix):]))
	}
	return suffixes
}

func userKey(userID domain.UserID) []byte {
	return []byte("user:" + string(userID))
}

func groupKey(groupID domain.GroupID) []byte {
	return []byte("group:" + string(groupID))
}

func memberKey(userID domain.UserID, groupID domain.GroupID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", userID, groupID))
}

func inviteKey(userID domain.UserID, groupID domain.GroupID) []byte {
	return []byte(fmt.Sprintf("invite:%s:%s", userID, groupID))
}

// messageKey sorts messages of a group by timestamp, then by insertion sequence.
func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%020d", message.GroupID, message.CreatedAt.UnixNano(), message.Seq))
}

func messagePrefix(groupID domain.GroupID) []byte {
	return []byte("msg:" + string(groupID) + ":")
}
