package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is immutable once appended. Seq breaks ties between messages sharing a timestamp.
type Message struct {
	ID        uuid.UUID
	GroupID   GroupID
	SenderID  UserID
	Text      string
	Lang      string
	CreatedAt time.Time
	Seq       uint64
}

// GroupSummary is a group along with its most recent message, if any.
type GroupSummary struct {
	Group       Group
	LastMessage *Message
}
