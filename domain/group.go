package domain

import (
	"group-chat/errors"
	"time"

	"github.com/samber/lo"
)

type GroupID string

// Group is a named chat room. Members and Invited are disjoint at all times.
type Group struct {
	ID          GroupID
	Name        string
	Description string
	OwnerID     UserID
	Private     bool
	Members     []UserID
	Invited     []UserID
	CreatedAt   time.Time
}

// NewGroup builds a group whose owner is its sole member.
func NewGroup(id GroupID, name, description string, owner UserID, private bool, at time.Time) Group {
	return Group{
		ID:          id,
		Name:        name,
		Description: description,
		OwnerID:     owner,
		Private:     private,
		Members:     []UserID{owner},
		Invited:     nil,
		CreatedAt:   at,
	}
}

func (g Group) HasMember(userID UserID) bool {
	return lo.Contains(g.Members, userID)
}

func (g Group) IsInvited(userID UserID) bool {
	return lo.Contains(g.Invited, userID)
}

// CanJoin runs the join preconditions in order: redundant join first, then the invitation check.
func (g Group) CanJoin(userID UserID) error {
	if g.HasMember(userID) {
		return errors.ErrAlreadyInGroup
	}
	if g.Private && !g.IsInvited(userID) {
		return errors.ErrNotInvited
	}
	return nil
}

// Join moves the user from the invited set to the member set.
func (g *Group) Join(userID UserID) error {
	if err := g.CanJoin(userID); err != nil {
		return err
	}
	g.Invited = lo.Without(g.Invited, userID)
	g.Members = append(g.Members, userID)
	return nil
}

// Invite adds the user to the invited set.
func (g *Group) Invite(userID UserID) error {
	if g.HasMember(userID) {
		return errors.ErrAlreadyInGroup
	}
	if g.IsInvited(userID) {
		return errors.ErrAlreadyInvited
	}
	g.Invited = append(g.Invited, userID)
	return nil
}
