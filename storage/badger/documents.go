package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close is a no-op; the repository holds no resources of its own.
func (r *DocumentRepository) Close() error {
	return nil
}

// AddDocument persists a new document and indexes it by subject.
func (r *DocumentRepository) AddDocument(ctx context.Context, doc *core.Document) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		doc.UpdatedAt = now

		if err := tx.Set(makeDocumentKey(doc.ID), storage.MarshalDocument(doc)); err != nil {
			return err
		}

		subjKey := makeDocumentSubjectKey(doc.SubjectID, doc.CreatedAt, doc.ID)
		if err := tx.Set(subjKey, []byte(doc.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
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

// UpdateDocument rewrites an existing document.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, doc *core.Document) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.ID)
		old, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListDocumentsBySubject returns all documents for a subject, newest first.
func (r *DocumentRepository) ListDocumentsBySubject(ctx context.Context, subjectID string) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialDocumentSubjectKey(subjectID)

		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			var docID string
			if err := iter.Item().Value(func(val []byte) error {
				docID = string(val)
				return nil
			}); err != nil {
				return err
			}

			doc, err := readDocument(tx, makeDocumentKey(docID))
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// The subject index is ascending by creation time; reverse for newest first.
	slices.Reverse(results)
	return results, nil
}

// readDocument reads a document from the transaction.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}
