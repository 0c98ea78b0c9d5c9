package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

// ChatRepository implements storage.ChatRepository for BadgerDB.
type ChatRepository struct {
	backend *Backend
}

var _ storage.ChatRepository = (*ChatRepository)(nil)

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(backend *Backend) *ChatRepository {
	return &ChatRepository{backend: backend}
}

// Close is a no-op; the repository holds no resources of its own.
func (r *ChatRepository) Close() error {
	return nil
}

// AddConversation persists a new conversation.
func (r *ChatRepository) AddConversation(ctx context.Context, conv *core.Conversation) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if conv.CreatedAt.IsZero() {
			conv.CreatedAt = time.Now().UTC()
		}
		if err := tx.Set(makeConversationKey(conv.ID), storage.MarshalConversation(conv)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetConversation retrieves a conversation by ID.
func (r *ChatRepository) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	var result *core.Conversation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeConversationKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalConversation(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// AppendMessage appends a finished message to a conversation's history.
// Appending is idempotent by message ID: the dedupe marker and the message
// are written in one transaction, and a replay returns false untouched.
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *core.Message) (bool, error) {
	appended := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		seenKey := makeMessageSeenKey(msg.ID)
		if _, err := tx.Get(seenKey); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}

		key := makeMessageKey(msg.ConversationID, msg.CreatedAt, msg.ID)
		if err := tx.Set(key, storage.MarshalMessage(msg)); err != nil {
			return err
		}
		if err := tx.Set(seenKey, []byte{1}); err != nil {
			return err
		}
		appended = true
		return tx.Commit()
	}, true)
	return appended, err
}

// ListMessages returns a conversation's messages in chronological order.
// A limit of 0 means the full history; a positive limit selects the NEWEST
// limit messages, still oldest first, so bounded reads carry the most
// recent context.
func (r *ChatRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*core.Message, error) {
	var results []*core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialMessageKey(conversationID)

		opts := badger.DefaultIteratorOptions
		seek := prefix
		if limit > 0 {
			// Walk backwards from the end of the prefix range so the
			// limit keeps the newest messages, not the oldest.
			opts.Reverse = true
			seek = append(append([]byte(nil), prefix...), 0xFF)
		}

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(seek); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}
			if limit > 0 && len(results) >= limit {
				break
			}

			var msg *core.Message
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				msg, unmarshalErr = storage.UnmarshalMessage(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			if msg != nil {
				results = append(results, msg)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		slices.Reverse(results)
	}
	return results, nil
}
