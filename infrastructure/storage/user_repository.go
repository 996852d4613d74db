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

// Ensure *UserRepository implements the contract.IUserRepository interface at compile time.
var _ contract.IUserRepository = (*UserRepository)(nil)

type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

// CreateUser persists a user record. Group memberships are never written here,
// they only come from group operations.
func (u *UserRepository) CreateUser(ctx context.Context, user domain.User) error {
	if err := user.ID.Validate(); err != nil {
		return err
	}
	return update(ctx, u.db, func(txn *badger.Txn) error {
		found, err := exists(txn, userKey(user.ID))
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%s: %w", user.ID, errors.ErrUserAlreadyExists)
		}
		return txn.Set(userKey(user.ID), encodeUser(user))
	})
}

// GetUser loads the user along with its memberships and pending invitations.
func (u *UserRepository) GetUser(ctx context.Context, userID domain.UserID) (domain.User, error) {
	var user domain.User
	err := view(ctx, u.db, func(txn *badger.Txn) error {
		var err error
		user, err = readUser(txn, userID)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// GetUsers loads several users in one read transaction. Unknown ids are skipped.
func (u *UserRepository) GetUsers(ctx context.Context, userIDs []domain.UserID) (map[domain.UserID]domain.User, error) {
	users := make(map[domain.UserID]domain.User, len(userIDs))
	err := view(ctx, u.db, func(txn *badger.Txn) error {
		for _, userID := range userIDs {
			if _, ok := users[userID]; ok {
				continue
			}
			user, err := readUser(txn, userID)
			if stderrors.Is(err, errors.ErrUserNotFound) {
				u.log.Debug("User not found", "user_id", userID)
				continue
			}
			if err != nil {
				return err
			}
			users[userID] = user
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func readUser(txn *badger.Txn, userID domain.UserID) (domain.User, error) {
	item, err := txn.Get(userKey(userID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%s: %w", userID, errors.ErrUserNotFound)
	}
	if err != nil {
		return domain.User{}, err
	}

	var user domain.User
	err = item.Value(func(val []byte) error {
		user, err = decodeUser(val)
		return err
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to decode user %s: %w", userID, err)
	}

	for _, groupID := range keysWithPrefix(txn, memberKey(userID, "")) {
		user.Groups = append(user.Groups, domain.GroupID(groupID))
	}
	for _, groupID := range keysWithPrefix(txn, inviteKey(userID, "")) {
		user.Invitations = append(user.Invitations, domain.GroupID(groupID))
	}
	return user, nil
}

// userExists is the cheap existence check used by group transactions.
func userExists(txn *badger.Txn, userID domain.UserID) error {
	found, err := exists(txn, userKey(userID))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", userID, errors.ErrUserNotFound)
	}
	return nil
}
