// Package event defines the frames exchanged with connected clients.
package event

import (
	"group-chat/domain"
	"time"

	"github.com/samber/lo"
)

type Name string

// Event names are part of the client contract; spelling included.
const (
	LastMessageType  Name = "LastMessage"
	MessageType      Name = "Message"
	NewGroupType     Name = "NewGroup"
	BroadCastType    Name = "BroadCast"
	HistoryType      Name = "History"
	SearchResultType Name = "SearchResult"
	ErrorType        Name = "Error"
)

// Envelope is a server to client frame.
type Envelope struct {
	Event   Name `json:"event"`
	Payload any  `json:"payload"`
}

type MessagePayload struct {
	Text    string          `json:"text"`
	GroupID domain.GroupID  `json:"groupId"`
	Sender  domain.UserInfo `json:"sender"`
	SendAt  time.Time       `json:"sendAt"`
}

type NewGroupPayload struct {
	GroupID   domain.GroupID  `json:"groupId"`
	Name      string          `json:"name"`
	IsPrivate bool            `json:"isPrivate"`
	Owner     domain.UserInfo `json:"owner"`
}

type HistoryPayload struct {
	GroupID  domain.GroupID   `json:"groupId"`
	Messages []MessagePayload `json:"messages"`
	Cursor   *string          `json:"cursor,omitempty"`
}

type SearchResultPayload struct {
	GroupID  domain.GroupID   `json:"groupId"`
	Terms    string           `json:"terms"`
	Messages []MessagePayload `json:"messages"`
}

type ErrorPayload struct {
	ID      string `json:"id,omitempty"`
	Method  string `json:"method,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func NewMessage(msg domain.Message, sender domain.UserInfo) Envelope {
	return Envelope{Event: MessageType, Payload: ToMessagePayload(msg, sender)}
}

func NewLastMessage(msg domain.Message, sender domain.UserInfo) Envelope {
	return Envelope{Event: LastMessageType, Payload: ToMessagePayload(msg, sender)}
}

func NewGroupCreated(group domain.Group, owner domain.UserInfo) Envelope {
	return Envelope{Event: NewGroupType, Payload: NewGroupPayload{
		GroupID:   group.ID,
		Name:      group.Name,
		IsPrivate: group.Private,
		Owner:     owner,
	}}
}

// NewBroadCast carries a plain text string as payload.
func NewBroadCast(text string) Envelope {
	return Envelope{Event: BroadCastType, Payload: text}
}

func NewError(id, method, kind string, err error) Envelope {
	return Envelope{Event: ErrorType, Payload: ErrorPayload{
		ID:      id,
		Method:  method,
		Kind:    kind,
		Message: err.Error(),
	}}
}

func ToMessagePayload(msg domain.Message, sender domain.UserInfo) MessagePayload {
	return MessagePayload{
		Text:    msg.Text,
		GroupID: msg.GroupID,
		Sender:  sender,
		SendAt:  msg.CreatedAt,
	}
}

// ToMessagePayloads resolves senders through the given lookup, falling back to the bare id.
func ToMessagePayloads(messages []domain.Message, senders map[domain.UserID]domain.UserInfo) []MessagePayload {
	return lo.Map(messages, func(item domain.Message, _ int) MessagePayload {
		sender, ok := senders[item.SenderID]
		if !ok {
			sender = domain.UserInfo{ID: item.SenderID}
		}
		return ToMessagePayload(item, sender)
	})
}

func NewHistory(groupID domain.GroupID, messages []MessagePayload, cursor *string) Envelope {
	return Envelope{Event: HistoryType, Payload: HistoryPayload{
		GroupID:  groupID,
		Messages: messages,
		Cursor:   cursor,
	}}
}

func NewSearchResult(groupID domain.GroupID, terms string, messages []MessagePayload) Envelope {
	return Envelope{Event: SearchResultType, Payload: SearchResultPayload{
		GroupID:  groupID,
		Terms:    terms,
		Messages: messages,
	}}
}
