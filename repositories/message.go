package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const keyPrefix = "msg:"

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	DeleteMessage(message DiskMessage) error
	LoadAll() ([]DiskMessage, error)
}

// MessageRepository persists the room log in BadgerDB. Values are the
// same JSON shape the gateway puts on the wire, so one codec serves both.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// DiskReply mirrors domain.ReplySummary on disk.
type DiskReply struct {
	ID     uuid.UUID `json:"id"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
}

type DiskMessage struct {
	ID         uuid.UUID           `json:"id"`
	Author     string              `json:"author"`
	Body       string              `json:"text"`
	Attachment *string             `json:"image,omitempty"`
	Reactions  map[string][]string `json:"reactions,omitempty"`
	ReplyTo    *DiskReply          `json:"repliedToMessage,omitempty"`
	At         time.Time           `json:"at"`
}

// Key formats the badger key as "msg:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector if
//     two messages carry the same nanosecond.
//
// The key is derived from immutable fields, so reaction updates overwrite
// the record in place.
func (m DiskMessage) Key() []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", keyPrefix, m.At.UnixNano(), m.ID))
}

// StoreMessage writes or overwrites one message record.
func (r MessageRepository) StoreMessage(message DiskMessage) error {
	value, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(message.Key(), value)
	})
}

// DeleteMessage removes the record from the durable log. The in-memory
// tombstone kept by the store is the only trace left afterwards.
func (r MessageRepository) DeleteMessage(message DiskMessage) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(message.Key())
	})
}

// LoadAll returns every stored message in chronological order. Thanks to
// the padded timestamp in the key, a forward prefix scan is already
// sorted by time.
func (r MessageRepository) LoadAll() ([]DiskMessage, error) {
	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]DiskMessage, 0, len(raw))
	for _, value := range raw {
		var message DiskMessage
		if err := json.Unmarshal(value, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}
