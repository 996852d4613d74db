// Package domain contains core concepts of the group chat.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"fmt"
	"group-chat/errors"
	"strings"
	"time"

	"github.com/samber/lo"
)

type UserID string

// Validate rejects ids that cannot be stored: ':' separates the parts of the index keys.
func (id UserID) Validate() error {
	if id == "" || strings.ContainsRune(string(id), ':') {
		return fmt.Errorf("user id %q: %w", id, errors.ErrInvalidUserID)
	}
	return nil
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a chat participant. Groups and Invitations are derived from the store indexes.
type User struct {
	ID          UserID
	Name        string
	Role        Role
	CreatedAt   time.Time
	Groups      []GroupID
	Invitations []GroupID
}

// Info is the public projection of a user shipped inside wire payloads.
func (u User) Info() UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name}
}

func (u User) IsInvitedTo(groupID GroupID) bool {
	return lo.Contains(u.Invitations, groupID)
}

type UserInfo struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}
