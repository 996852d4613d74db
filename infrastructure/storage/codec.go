package storage

import (
	"group-chat/domain"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored with the protobuf wire format so the layout stays forward compatible:
// unknown fields are skipped on read, absent fields decode to their zero value.

const (
	userID        protowire.Number = 1
	userName      protowire.Number = 2
	userRole      protowire.Number = 3
	userCreatedAt protowire.Number = 4
)

const (
	groupID          protowire.Number = 1
	groupName        protowire.Number = 2
	groupDescription protowire.Number = 3
	groupOwner       protowire.Number = 4
	groupPrivate     protowire.Number = 5
	groupMembers     protowire.Number = 6
	groupInvited     protowire.Number = 7
	groupCreatedAt   protowire.Number = 8
)

const (
	messageID        protowire.Number = 1
	messageGroup     protowire.Number = 2
	messageSender    protowire.Number = 3
	messageText      protowire.Number = 4
	messageLang      protowire.Number = 5
	messageCreatedAt protowire.Number = 6
	messageSeq       protowire.Number = 7
)

func encodeUser(u domain.User) []byte {
	var b []byte
	b = appendString(b, userID, string(u.ID))
	b = appendString(b, userName, u.Name)
	b = appendString(b, userRole, string(u.Role))
	b = appendVarint(b, userCreatedAt, uint64(u.CreatedAt.UnixNano()))
	return b
}

func decodeUser(b []byte) (domain.User, error) {
	r, err := decodeRecord(b)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:        domain.UserID(r.string(userID)),
		Name:      r.string(userName),
		Role:      domain.Role(r.string(userRole)),
		CreatedAt: r.time(userCreatedAt),
	}, nil
}

func encodeGroup(g domain.Group) []byte {
	var b []byte
	b = appendString(b, groupID, string(g.ID))
	b = appendString(b, groupName, g.Name)
	b = appendString(b, groupDescription, g.Description)
	b = appendString(b, groupOwner, string(g.OwnerID))
	b = appendVarint(b, groupPrivate, protowire.EncodeBool(g.Private))
	for _, member := range g.Members {
		b = appendRepeated(b, groupMembers, string(member))
	}
	for _, invited := range g.Invited {
		b = appendRepeated(b, groupInvited, string(invited))
	}
	b = appendVarint(b, groupCreatedAt, uint64(g.CreatedAt.UnixNano()))
	return b
}

func decodeGroup(b []byte) (domain.Group, error) {
	r, err := decodeRecord(b)
	if err != nil {
		return domain.Group{}, err
	}
	return domain.Group{
		ID:          domain.GroupID(r.string(groupID)),
		Name:        r.string(groupName),
		Description: r.string(groupDescription),
		OwnerID:     domain.UserID(r.string(groupOwner)),
		Private:     protowire.DecodeBool(r.varints[groupPrivate]),
		Members:     toUserIDs(r.strings[groupMembers]),
		Invited:     toUserIDs(r.strings[groupInvited]),
		CreatedAt:   r.time(groupCreatedAt),
	}, nil
}

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, messageID, m.ID.String())
	b = appendString(b, messageGroup, string(m.GroupID))
	b = appendString(b, messageSender, string(m.SenderID))
	b = appendString(b, messageText, m.Text)
	b = appendString(b, messageLang, m.Lang)
	b = appendVarint(b, messageCreatedAt, uint64(m.CreatedAt.UnixNano()))
	b = appendVarint(b, messageSeq, m.Seq)
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	r, err := decodeRecord(b)
	if err != nil {
		return domain.Message{}, err
	}
	id, err := uuid.Parse(r.string(messageID))
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		GroupID:   domain.GroupID(r.string(messageGroup)),
		SenderID:  domain.UserID(r.string(messageSender)),
		Text:      r.string(messageText),
		Lang:      r.string(messageLang),
		CreatedAt: r.time(messageCreatedAt),
		Seq:       r.varints[messageSeq],
	}, nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	return appendRepeated(b, num, v)
}

func appendRepeated(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// record holds the decoded fields of one value; repeated strings keep their order.
type record struct {
	strings map[protowire.Number][]string
	varints map[protowire.Number]uint64
}

func decodeRecord(b []byte) (record, error) {
	r := record{
		strings: make(map[protowire.Number][]string),
		varints: make(map[protowire.Number]uint64),
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return record{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return record{}, protowire.ParseError(m)
			}
			r.strings[num] = append(r.strings[num], v)
			n = m
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return record{}, protowire.ParseError(m)
			}
			r.varints[num] = v
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return record{}, protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return r, nil
}

// string returns the last occurrence of a singular field, like proto3 does.
func (r record) string(num protowire.Number) string {
	values := r.strings[num]
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

func (r record) time(num protowire.Number) time.Time {
	v, ok := r.varints[num]
	if !ok {
		return time.Time{}
	}
	return time.Unix(0, int64(v)).UTC()
}

func toUserIDs(values []string) []domain.UserID {
	if len(values) == 0 {
		return nil
	}
	ids := make([]domain.UserID, len(values))
	for i, v := range values {
		ids[i] = domain.UserID(v)
	}
	return ids
}
