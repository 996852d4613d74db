package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"group-chat/contract"
	"group-chat/domain"
	"group-chat/errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Ensure *GroupRepository implements the contract.IGroupRepository interface at compile time.
var _ contract.IGroupRepository = (*GroupRepository)(nil)

var errGroupAlreadyExists = fmt.Errorf("group already exists: %w", errors.ErrBadRequest)

// GroupRepository owns groups, their membership indexes and their messages.
// A group record and the member/invite index keys of its users are always written
// in the same transaction.
type GroupRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	sequence      *badger.Sequence
	locks         *groupLocks
}

func NewGroupRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*GroupRepository, error) {
	sequence, err := db.GetSequence([]byte("seq:msg"), 100)
	if err != nil {
		return nil, fmt.Errorf("failed to lease message sequence: %w", err)
	}
	return &GroupRepository{
		db:            db,
		log:           log,
		limitMessages: limitMessages,
		sequence:      sequence,
		locks:         newGroupLocks(),
	}, nil
}

// Close returns the unused part of the leased sequence range to the store.
func (g *GroupRepository) Close() error {
	return g.sequence.Release()
}

// CreateGroup persists the group and indexes every member and invited user. The owner must exist.
func (g *GroupRepository) CreateGroup(ctx context.Context, group domain.Group) error {
	unlock := g.locks.lock(group.ID)
	defer unlock()
	return update(ctx, g.db, func(txn *badger.Txn) error {
		found, err := exists(txn, groupKey(group.ID))
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%s: %w", group.ID, errGroupAlreadyExists)
		}
		if err := userExists(txn, group.OwnerID); err != nil {
			return err
		}
		return writeGroup(txn, group)
	})
}

func (g *GroupRepository) GetGroup(ctx context.Context, groupID domain.GroupID) (domain.Group, error) {
	var group domain.Group
	err := view(ctx, g.db, func(txn *badger.Txn) error {
		var err error
		group, err = readGroup(txn, groupID)
		return err
	})
	if err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

// ListGroupIDs walks the group keys only, values are never loaded.
func (g *GroupRepository) ListGroupIDs(ctx context.Context) ([]domain.GroupID, error) {
	var groupIDs []domain.GroupID
	err := view(ctx, g.db, func(txn *badger.Txn) error {
		for _, id := range keysWithPrefix(txn, []byte("group:")) {
			groupIDs = append(groupIDs, domain.GroupID(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groupIDs, nil
}

// GetUserGroups returns every group the user is a member of, each with its most recent message.
func (g *GroupRepository) GetUserGroups(ctx context.Context, userID domain.UserID) ([]domain.GroupSummary, error) {
	var summaries []domain.GroupSummary
	err := view(ctx, g.db, func(txn *badger.Txn) error {
		for _, id := range keysWithPrefix(txn, memberKey(userID, "")) {
			group, err := readGroup(txn, domain.GroupID(id))
			if stderrors.Is(err, errors.ErrGroupNotFound) {
				g.log.Warn("Dangling membership index", "user_id", userID, "group_id", id)
				continue
			}
			if err != nil {
				return err
			}
			last, err := lastMessage(txn, group.ID)
			if err != nil {
				return err
			}
			summaries = append(summaries, domain.GroupSummary{Group: group, LastMessage: last})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// JoinGroup moves the user from the invited set to the member set. The join preconditions
// are checked again inside the transaction, against the committed group record.
// Writers of the same group are serialized, a join never fails because another one landed first.
func (g *GroupRepository) JoinGroup(ctx context.Context, groupID domain.GroupID, userID domain.UserID) (domain.Group, error) {
	var group domain.Group
	unlock := g.locks.lock(groupID)
	defer unlock()
	err := update(ctx, g.db, func(txn *badger.Txn) error {
		var err error
		if group, err = readGroup(txn, groupID); err != nil {
			return err
		}
		if err = userExists(txn, userID); err != nil {
			return err
		}
		if err = group.Join(userID); err != nil {
			return err
		}
		if err = txn.Delete(inviteKey(userID, groupID)); err != nil {
			return err
		}
		return writeGroup(txn, group)
	})
	if err != nil {
		return domain.Group{}, err
	}
	g.log.Debug("User joined group", "user_id", userID, "group_id", groupID)
	return group, nil
}

// InviteUser adds the user to the invited set of the group.
func (g *GroupRepository) InviteUser(ctx context.Context, groupID domain.GroupID, userID domain.UserID) (domain.Group, error) {
	var group domain.Group
	unlock := g.locks.lock(groupID)
	defer unlock()
	err := update(ctx, g.db, func(txn *badger.Txn) error {
		var err error
		if group, err = readGroup(txn, groupID); err != nil {
			return err
		}
		if err = userExists(txn, userID); err != nil {
			return err
		}
		if err = group.Invite(userID); err != nil {
			return err
		}
		return writeGroup(txn, group)
	})
	if err != nil {
		return domain.Group{}, err
	}
	g.log.Debug("User invited to group", "user_id", userID, "group_id", groupID)
	return group, nil
}

func readGroup(txn *badger.Txn, groupID domain.GroupID) (domain.Group, error) {
	item, err := txn.Get(groupKey(groupID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Group{}, fmt.Errorf("%s: %w", groupID, errors.ErrGroupNotFound)
	}
	if err != nil {
		return domain.Group{}, err
	}

	var group domain.Group
	err = item.Value(func(val []byte) error {
		group, err = decodeGroup(val)
		return err
	})
	if err != nil {
		return domain.Group{}, fmt.Errorf("failed to decode group %s: %w", groupID, err)
	}
	return group, nil
}

// writeGroup stores the record and keeps the per-user indexes in step with it.
func writeGroup(txn *badger.Txn, group domain.Group) error {
	if err := txn.Set(groupKey(group.ID), encodeGroup(group)); err != nil {
		return err
	}
	for _, member := range group.Members {
		if err := txn.Set(memberKey(member, group.ID), nil); err != nil {
			return err
		}
	}
	for _, invited := range group.Invited {
		if err := txn.Set(inviteKey(invited, group.ID), nil); err != nil {
			return err
		}
	}
	return nil
}
