package domain

import "encoding/json"

type Method string

const (
	SendMessageToGroupMethod Method = "SendMessageToGroup"
	CreateGroupMethod        Method = "CreateGroup"
	JoinGroupMethod          Method = "JoinGroup"
	BroadcastToAllMethod     Method = "BroadcastToAll"
	InviteToGroupMethod      Method = "InviteToGroup"
	HistoryMethod            Method = "History"
	SearchMessagesMethod     Method = "SearchMessages"
)

// Request is a client to server frame. Params is decoded according to Method.
type Request struct {
	ID     string          `json:"id,omitempty"`
	Method Method          `json:"method" validate:"required"`
	Params json.RawMessage `json:"params"`
}

type SendMessageCommand struct {
	GroupID GroupID `json:"groupId" validate:"required,max=64"`
	Text    string  `json:"text" validate:"required"`
}

// CreateGroupCommand defaults to a private group when IsPrivate is omitted.
type CreateGroupCommand struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
	IsPrivate   *bool  `json:"isPrivate"`
}

type JoinGroupCommand struct {
	GroupID GroupID `json:"groupId" validate:"required,max=64"`
}

type BroadcastCommand struct {
	Text string `json:"text" validate:"required"`
}

type InviteCommand struct {
	GroupID GroupID `json:"groupId" validate:"required,max=64"`
	UserID  UserID  `json:"userId" validate:"required,max=64"`
}

type HistoryCommand struct {
	GroupID GroupID `json:"groupId" validate:"required,max=64"`
	Cursor  *string `json:"cursor"`
}

type SearchCommand struct {
	GroupID GroupID `json:"groupId" validate:"required,max=64"`
	Terms   string  `json:"terms" validate:"required,max=256"`
	Limit   int     `json:"limit" validate:"gte=0,lte=100"`
}
