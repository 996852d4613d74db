package storage

import (
	"context"
	"fmt"
	"group-chat/contract"
	"group-chat/domain"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

// Ensure *MessageIndex implements the contract.IMessageIndex interface at compile time.
var _ contract.IMessageIndex = (*MessageIndex)(nil)

const (
	fieldGroup  = "group"
	fieldSender = "sender"
	fieldText   = "text"
	fieldLang   = "lang"
	fieldAt     = "at"
)

// MessageIndex is the full-text index of persisted messages. Badger stays the source of
// truth, the index can be dropped and rebuilt from it.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index adds or replaces the document of a message, keyed by the message id.
func (m *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField(fieldGroup, string(message.GroupID)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSender, string(message.SenderID)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldLang, message.Lang).StoreValue()).
		AddField(bluge.NewTextField(fieldText, message.Text).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldAt, message.CreatedAt).StoreValue())

	if err := m.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("failed to index message %s: %w", message.ID, err)
	}
	return nil
}

// Search matches terms against the text of the group's messages and returns the newest
// limit hits, newest first. Relevance plays no part in the selection.
func (m *MessageIndex) Search(ctx context.Context, groupID domain.GroupID, terms string, limit int) ([]domain.Message, error) {
	reader, err := m.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(groupID)).SetField(fieldGroup)).
		AddMust(bluge.NewMatchQuery(terms).SetField(fieldText))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query).SortBy([]string{"-" + fieldAt}))
	if err != nil {
		return nil, fmt.Errorf("search in %s: %w", groupID, err)
	}

	var messages []domain.Message
	match, err := iterator.Next()
	for err == nil && match != nil {
		var message domain.Message
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				message.ID, visitErr = uuid.ParseBytes(value)
			case fieldGroup:
				message.GroupID = domain.GroupID(value)
			case fieldSender:
				message.SenderID = domain.UserID(value)
			case fieldLang:
				message.Lang = string(value)
			case fieldText:
				message.Text = string(value)
			case fieldAt:
				message.CreatedAt, visitErr = bluge.DecodeDateTime(value)
			}
			return visitErr == nil
		})
		if err != nil {
			return nil, err
		}
		if visitErr != nil {
			return nil, fmt.Errorf("corrupted search document: %w", visitErr)
		}
		messages = append(messages, message)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return messages, nil
}
