package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

// UploadRepository implements storage.UploadRepository for BadgerDB.
type UploadRepository struct {
	backend *Backend
}

var _ storage.UploadRepository = (*UploadRepository)(nil)

// NewUploadRepository creates a new UploadRepository.
func NewUploadRepository(backend *Backend) *UploadRepository {
	return &UploadRepository{backend: backend}
}

// Close is a no-op; the repository holds no resources of its own.
func (r *UploadRepository) Close() error {
	return nil
}

// AddSessions persists one or more new upload sessions and indexes them by
// object key and expiry.
func (r *UploadRepository) AddSessions(ctx context.Context, sessions ...*core.UploadSession) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, session := range sessions {
			now := time.Now().UTC()
			if session.CreatedAt.IsZero() {
				session.CreatedAt = now
			}
			session.UpdatedAt = now

			key := makeUploadSessionKey(session.ID)
			if err := tx.Set(key, storage.MarshalUploadSession(session)); err != nil {
				return err
			}

			objKey := makeUploadObjectKeyKey(session.ObjectKey)
			if err := tx.Set(objKey, []byte(session.ID)); err != nil {
				return err
			}

			expKey := makeUploadExpiryKey(session.ExpiresAt, session.ID)
			if err := tx.Set(expKey, []byte(session.ID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetSession retrieves a session by ID.
func (r *UploadRepository) GetSession(ctx context.Context, id string) (*core.UploadSession, error) {
	var result *core.UploadSession
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readUploadSession(tx, makeUploadSessionKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetSessionByObjectKey retrieves a session by its object key.
func (r *UploadRepository) GetSessionByObjectKey(ctx context.Context, objectKey string) (*core.UploadSession, error) {
	var result *core.UploadSession
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeUploadObjectKeyKey(objectKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		var sessionID string
		if err := item.Value(func(val []byte) error {
			sessionID = string(val)
			return nil
		}); err != nil {
			return err
		}
		result, err = readUploadSession(tx, makeUploadSessionKey(sessionID))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// UpdateSession rewrites an existing session. The expiry index entry is
// removed once the session reaches a terminal status so the sweeper never
// revisits it.
func (r *UploadRepository) UpdateSession(ctx context.Context, session *core.UploadSession) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeUploadSessionKey(session.ID)
		old, err := readUploadSession(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		session.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalUploadSession(session)); err != nil {
			return err
		}

		if session.Status.Terminal() && !old.Status.Terminal() {
			if err := tx.Delete(makeUploadExpiryKey(old.ExpiresAt, old.ID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DueSessions returns pending sessions whose expiry is at or before now,
// ordered by expiry.
func (r *UploadRepository) DueSessions(ctx context.Context, now time.Time) ([]*core.UploadSession, error) {
	var results []*core.UploadSession
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := []byte(uploadExpiryPrefix + ":")
		endKey := makePartialUploadExpiryKey(now.Add(1 * time.Microsecond))

		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(startKey) || slices.Compare(key[:len(startKey)], startKey) != 0 {
				break
			}
			if slices.Compare(key[:len(endKey)], endKey) > 0 {
				break
			}

			var sessionID string
			if err := iter.Item().Value(func(val []byte) error {
				sessionID = string(val)
				return nil
			}); err != nil {
				return err
			}

			session, err := readUploadSession(tx, makeUploadSessionKey(sessionID))
			if err != nil {
				return err
			}
			if session != nil && !session.Status.Terminal() {
				results = append(results, session)
			}
		}
		return nil
	}, false)
	return results, err
}

// readUploadSession reads an upload session from the transaction.
func readUploadSession(tx *badger.Txn, key []byte) (*core.UploadSession, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var session *core.UploadSession
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		session, unmarshalErr = storage.UnmarshalUploadSession(val)
		return unmarshalErr
	})
	return session, err
}
