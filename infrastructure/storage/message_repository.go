package storage

import (
	"context"
	"fmt"
	"group-chat/domain"
	"group-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

// AppendMessage persists a message at the end of its group.
// The key is formatted as "msg:{group_id}:{timestamp_padded}:{seq_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Break ties between messages sharing a nanosecond with the store-wide insertion sequence.
func (g *GroupRepository) AppendMessage(ctx context.Context, message domain.Message) (domain.Message, error) {
	seq, err := g.sequence.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to get next message sequence: %w", err)
	}
	message.Seq = seq
	message.CreatedAt = message.CreatedAt.UTC()

	unlock := g.locks.lock(message.GroupID)
	defer unlock()
	err = update(ctx, g.db, func(txn *badger.Txn) error {
		found, err := exists(txn, groupKey(message.GroupID))
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("append to %s: %w", message.GroupID, errors.ErrGroupNotFound)
		}
		return txn.Set(messageKey(message), encodeMessage(message))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetMessages pages through a group's messages, newest first.
// The cursor is the key suffix of the last message returned, nil once the history is exhausted.
func (g *GroupRepository) GetMessages(ctx context.Context, groupID domain.GroupID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var next *string
	err := view(ctx, g.db, func(txn *badger.Txn) error {
		prefix := messagePrefix(groupID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Past the newest key, the reverse iterator then walks back in time
			seekKey = append(append([]byte{}, prefix...), 0xFF)
		default:
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if g.limitMessages != nil && len(messages) == *g.limitMessages {
				g.log.Debug(fmt.Sprintf("Maximum of %d message reached", *g.limitMessages))
				last := string(messageKey(messages[len(messages)-1])[len(prefix):])
				next = &last
				break
			}
			message, err := readMessage(it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, next, nil
}

// lastMessage returns the newest message of the group, nil when it has none.
func lastMessage(txn *badger.Txn, groupID domain.GroupID) (*domain.Message, error) {
	prefix := messagePrefix(groupID)
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	options.Prefix = prefix
	options.PrefetchSize = 1
	it := txn.NewIterator(options)
	defer it.Close()

	it.Seek(append(append([]byte{}, prefix...), 0xFF))
	if !it.ValidForPrefix(prefix) {
		return nil, nil
	}
	message, err := readMessage(it.Item())
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func readMessage(item *badger.Item) (domain.Message, error) {
	var message domain.Message
	err := item.Value(func(val []byte) error {
		var err error
		message, err = decodeMessage(val)
		return err
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to decode message %s: %w", item.Key(), err)
	}
	return message, nil
}
