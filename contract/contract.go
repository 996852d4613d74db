//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"group-chat/domain"
	"group-chat/domain/event"
)

// Connection is one live client session. Send is fire-and-forget: it enqueues the frame
// and never waits for the client to acknowledge it.
type Connection interface {
	ID() domain.ConnectionID
	UserID() domain.UserID
	Send(ctx context.Context, envelope event.Envelope) error
}

type IRegistry interface {
	Initialize(ctx context.Context) error
	RegisterGroup(groupID domain.GroupID)
	BindConnection(groupID domain.GroupID, connectionID domain.ConnectionID) error
	IsBound(groupID domain.GroupID, connectionID domain.ConnectionID) bool
	GroupExists(groupID domain.GroupID) bool
	AddConnection(conn Connection)
	RemoveConnection(connectionID domain.ConnectionID)
	ConnectionsFor(groupID domain.GroupID) []Connection
	ConnectionsOfUser(userID domain.UserID) []Connection
	Connections() []Connection
}

type IUserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID domain.UserID) (domain.User, error)
	GetUsers(ctx context.Context, userIDs []domain.UserID) (map[domain.UserID]domain.User, error)
}

type IGroupRepository interface {
	CreateGroup(ctx context.Context, group domain.Group) error
	GetGroup(ctx context.Context, groupID domain.GroupID) (domain.Group, error)
	ListGroupIDs(ctx context.Context) ([]domain.GroupID, error)
	GetUserGroups(ctx context.Context, userID domain.UserID) ([]domain.GroupSummary, error)
	JoinGroup(ctx context.Context, groupID domain.GroupID, userID domain.UserID) (domain.Group, error)
	InviteUser(ctx context.Context, groupID domain.GroupID, userID domain.UserID) (domain.Group, error)
	AppendMessage(ctx context.Context, message domain.Message) (domain.Message, error)
	GetMessages(ctx context.Context, groupID domain.GroupID, cursor *string) ([]domain.Message, *string, error)
}

type IMessageIndex interface {
	Index(message domain.Message) error
	Search(ctx context.Context, groupID domain.GroupID, terms string, limit int) ([]domain.Message, error)
}
