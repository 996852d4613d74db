package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Entry is a human readable view of one raw key of the store.
type Entry struct {
	Key       string
	Kind      string
	ID        string
	Timestamp string
	Detail    string
}

const noTimestamp = "--:--:--"

// Prefixes lists the key families of the store, in the order they are usually inspected.
var Prefixes = []string{"user:", "group:", "member:", "invite:", "msg:"}

// DescribeEntry decodes a raw key/value pair without knowing its family beforehand.
// A value that fails to decode is reported in Detail, never as an error.
func DescribeEntry(key string, val []byte) Entry {
	entry := Entry{Key: key, Kind: "RAW", Timestamp: noTimestamp, Detail: fmt.Sprintf("Size: %d bytes", len(val))}
	family, rest, _ := strings.Cut(key, ":")

	switch family {
	case "user":
		entry.Kind = "USER"
		u, err := decodeUser(val)
		if err != nil {
			return failed(entry, err)
		}
		entry.ID = string(u.ID)
		entry.Timestamp = clock(u.CreatedAt)
		entry.Detail = fmt.Sprintf("%s (%s)", u.Name, u.Role)
	case "group":
		entry.Kind = "GROUP"
		g, err := decodeGroup(val)
		if err != nil {
			return failed(entry, err)
		}
		entry.ID = string(g.ID)
		entry.Timestamp = clock(g.CreatedAt)
		entry.Detail = fmt.Sprintf("%s owner=%s private=%t members=%d invited=%d",
			g.Name, g.OwnerID, g.Private, len(g.Members), len(g.Invited))
	case "member", "invite":
		entry.Kind = strings.ToUpper(family)
		user, group, _ := strings.Cut(rest, ":")
		entry.ID = user
		entry.Detail = "group=" + group
	case "msg":
		entry.Kind = "MESSAGE"
		m, err := decodeMessage(val)
		if err != nil {
			return failed(entry, err)
		}
		entry.ID = m.ID.String()
		entry.Timestamp = clock(m.CreatedAt)
		entry.Detail = fmt.Sprintf("[%s] %s: %s", m.GroupID, m.SenderID, m.Text)
	case "seq":
		entry.Kind = "SEQUENCE"
		entry.ID = rest
	}
	return entry
}

// Scan describes every entry under prefix, at most limit of them when limit is positive.
func Scan(ctx context.Context, db *badger.DB, prefix string, limit int) ([]Entry, error) {
	var entries []Entry
	err := view(ctx, db, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if limit > 0 && len(entries) >= limit {
				return nil
			}
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, DescribeEntry(string(item.KeyCopy(nil)), val))
		}
		return nil
	})
	return entries, err
}

func failed(entry Entry, err error) Entry {
	entry.Detail = "Error: " + err.Error()
	return entry
}

func clock(t time.Time) string {
	if t.IsZero() {
		return noTimestamp
	}
	return t.Format(time.DateTime)
}

// CountMessages returns how many messages each group holds.
func CountMessages(ctx context.Context, db *badger.DB) (map[string]int, error) {
	counts := make(map[string]int)
	err := view(ctx, db, func(txn *badger.Txn) error {
		for _, suffix := range keysWithPrefix(txn, []byte("msg:")) {
			// suffix is {group}:{timestamp}:{seq}; group ids never contain a colon
			group, _, _ := strings.Cut(suffix, ":")
			counts[group]++
		}
		return nil
	})
	return counts, err
}
