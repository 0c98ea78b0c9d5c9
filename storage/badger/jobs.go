package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB. It maintains
// an active-job marker per document so the single non-terminal job invariant
// is enforced at the storage layer, not by callers.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{backend: backend}
}

// Close is a no-op; the repository holds no resources of its own.
func (r *JobRepository) Close() error {
	return nil
}

// CreateJob persists a new job and marks it as the document's active job.
// The active-marker check and the insert share one transaction, so two
// concurrent creates for the same document cannot both succeed: one of the
// racing transactions fails its commit with a conflict, which is reported
// as ErrDuplicateKey like the marker check itself.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.IngestionJob) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		activeKey := makeJobActiveKey(job.DocumentID)
		if _, err := tx.Get(activeKey); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		now := time.Now().UTC()
		if job.CreatedAt.IsZero() {
			job.CreatedAt = now
		}
		job.UpdatedAt = now

		if err := tx.Set(makeJobKey(job.ID), storage.MarshalIngestionJob(job)); err != nil {
			return err
		}
		if err := tx.Set(activeKey, []byte(job.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if errors.Is(err, badger.ErrConflict) {
		return storage.ErrDuplicateKey
	}
	return err
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.IngestionJob, error) {
	var result *core.IngestionJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readJob(tx, makeJobKey(id))
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

// UpdateJob rewrites an existing job. When the job has reached a terminal
// state the document's active-job marker is cleared in the same transaction.
func (r *JobRepository) UpdateJob(ctx context.Context, job *core.IngestionJob) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.ID)
		old, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		job.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalIngestionJob(job)); err != nil {
			return err
		}

		if job.State.Terminal() && !old.State.Terminal() {
			if err := tx.Delete(makeJobActiveKey(job.DocumentID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ActiveJobForDocument returns the document's current non-terminal job.
func (r *JobRepository) ActiveJobForDocument(ctx context.Context, documentID string) (*core.IngestionJob, error) {
	var result *core.IngestionJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeJobActiveKey(documentID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		var jobID string
		if err := item.Value(func(val []byte) error {
			jobID = string(val)
			return nil
		}); err != nil {
			return err
		}
		result, err = readJob(tx, makeJobKey(jobID))
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

// readJob reads an ingestion job from the transaction.
func readJob(tx *badger.Txn, key []byte) (*core.IngestionJob, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var job *core.IngestionJob
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		job, unmarshalErr = storage.UnmarshalIngestionJob(val)
		return unmarshalErr
	})
	return job, err
}
