package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/objectstore"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
	"github.com/collazomanuel/cetec-asistente-backend/vectorstore"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Manager runs ingestion jobs on a worker pool and owns their state machine.
type Manager struct {
	jobs      storage.JobRepository
	documents storage.DocumentRepository
	store     objectstore.Store
	index     vectorstore.Index
	pool      *ants.Pool
	logger    *slog.Logger

	maxAttempts  int
	retryDelay   time.Duration
	chunkSize    int
	chunkOverlap int

	transMu sync.Mutex // serializes job state transitions

	mu     sync.Mutex
	active map[string]context.CancelFunc

	wg sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager) error

// WithPoolSize sets the worker pool size for concurrent jobs.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(m *Manager) error {
		if size < 1 {
			size = 1
		}
		if m.pool != nil {
			m.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		m.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithRetry sets the maximum attempts and base backoff delay for transient
// failures.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(m *Manager) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		m.maxAttempts = maxAttempts
		m.retryDelay = baseDelay
		return nil
	}
}

// WithChunking sets the chunk size and overlap used when splitting documents.
func WithChunking(size, overlap int) Option {
	return func(m *Manager) error {
		if size > 0 {
			m.chunkSize = size
		}
		if overlap >= 0 {
			m.chunkOverlap = overlap
		}
		return nil
	}
}

// NewManager creates an ingestion manager.
func NewManager(
	jobs storage.JobRepository,
	documents storage.DocumentRepository,
	store objectstore.Store,
	index vectorstore.Index,
	opts ...Option,
) (*Manager, error) {
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if store == nil {
		return nil, ErrObjectStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		jobs:         jobs,
		documents:    documents,
		store:        store,
		index:        index,
		pool:         pool,
		logger:       slog.Default().With("component", "ingestion"),
		maxAttempts:  defaultMaxAttempts,
		retryDelay:   defaultRetryDelay,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		active:       make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		if optErr := opt(m); optErr != nil {
			m.pool.Release()
			return nil, optErr
		}
	}

	return m, nil
}

// Start creates a queued job for the document and submits it to the pool.
// Returns ErrJobConflict if the document already has a non-terminal job.
func (m *Manager) Start(ctx context.Context, documentID string) (*core.IngestionJob, error) {
	doc, err := m.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotFound, documentID)
	}

	job := &core.IngestionJob{
		ID:         core.NewID(),
		DocumentID: doc.ID,
		SubjectID:  doc.SubjectID,
		State:      core.JobQueued,
	}
	if err := m.jobs.CreateJob(ctx, job); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrJobConflict
		}
		return nil, err
	}

	doc.Status = core.DocumentIngesting
	if err := m.documents.UpdateDocument(ctx, doc); err != nil {
		m.logger.Warn("failed to mark document ingesting", "document", doc.ID, "err", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.active[job.ID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	if err := m.pool.Submit(func() {
		defer m.wg.Done()
		m.runJob(runCtx, job.ID, doc)
	}); err != nil {
		m.wg.Done()
		m.release(job.ID)
		m.fail(job.ID, doc, err)
		return nil, err
	}

	m.logger.Info("ingestion job queued", "job", job.ID, "document", doc.ID)
	return job, nil
}

// Get returns a job by ID.
func (m *Manager) Get(ctx context.Context, jobID string) (*core.IngestionJob, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: ingestion job %s", core.ErrNotFound, jobID)
	}
	return job, nil
}

// Cancel moves the job to cancelled, aborts its worker, and cleans up any
// vectors the job already wrote. Cancelling a terminal job returns
// ErrJobAlreadyTerminal.
func (m *Manager) Cancel(ctx context.Context, jobID string) (*core.IngestionJob, error) {
	job, err := m.transition(ctx, jobID, core.JobCancelled, nil)
	if err != nil {
		return job, err
	}

	m.mu.Lock()
	if cancel, ok := m.active[jobID]; ok {
		cancel()
	}
	m.mu.Unlock()

	if doc, derr := m.documents.GetDocument(ctx, job.DocumentID); derr == nil {
		doc.Status = core.DocumentStored
		if uerr := m.documents.UpdateDocument(ctx, doc); uerr != nil {
			m.logger.Warn("failed to reset document status", "document", doc.ID, "err", uerr)
		}
	}

	// Best-effort cleanup of partially written vectors.
	go func() {
		cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), time.Minute)
		defer cancelCleanup()
		if err := m.index.DeleteDocument(cleanupCtx, job.DocumentID); err != nil {
			m.logger.Warn("failed to delete vectors for cancelled job",
				"job", jobID, "document", job.DocumentID, "err", err)
		}
	}()

	m.logger.Info("ingestion job cancelled", "job", jobID)
	return job, nil
}

// OnVectorStoreEvent reconciles a job with an out-of-band vector store
// callback. A success completes a vectorizing job; a failure fails any
// non-terminal job. Replays against terminal jobs are no-ops.
func (m *Manager) OnVectorStoreEvent(ctx context.Context, jobID string, succeeded bool, detail string) (*core.IngestionJob, error) {
	var (
		job *core.IngestionJob
		err error
	)
	if succeeded {
		job, err = m.transition(ctx, jobID, core.JobCompleted, nil)
	} else {
		job, err = m.transition(ctx, jobID, core.JobFailed, func(j *core.IngestionJob) {
			j.Error = detail
		})
	}
	if err != nil {
		if errors.Is(err, core.ErrJobAlreadyTerminal) {
			m.logger.Info("ignoring callback for terminal job", "job", jobID, "state", job.State)
			return job, nil
		}
		return nil, err
	}

	if doc, derr := m.documents.GetDocument(ctx, job.DocumentID); derr == nil {
		if succeeded {
			doc.Status = core.DocumentReady
		} else {
			doc.Status = core.DocumentFailed
		}
		if uerr := m.documents.UpdateDocument(ctx, doc); uerr != nil {
			m.logger.Warn("failed to update document status", "document", doc.ID, "err", uerr)
		}
	}
	return job, nil
}

// Wait blocks until every submitted job has finished. Test helper.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Release waits for in-flight jobs and releases the worker pool.
// The manager should not be used after calling Release.
func (m *Manager) Release() {
	m.wg.Wait()
	m.pool.Release()
}

func (m *Manager) runJob(ctx context.Context, jobID string, doc *core.Document) {
	defer m.release(jobID)

	if _, err := m.transition(ctx, jobID, core.JobRunning, nil); err != nil {
		m.logger.Warn("job did not start", "job", jobID, "err", err)
		return
	}

	var content []byte
	err := RetryWithBackoff(ctx, func() error {
		var fetchErr error
		content, fetchErr = m.store.Fetch(ctx, doc.ObjectKey)
		return fetchErr
	}, m.maxAttempts, m.retryDelay, func(attempt int) {
		m.recordAttempt(jobID, attempt)
	})
	if err != nil {
		m.fail(jobID, doc, err)
		return
	}

	text, err := extractText(ctx, doc.FileName, content)
	if err != nil {
		m.fail(jobID, doc, err)
		return
	}

	chunks, err := splitDocument(doc, text, m.chunkSize, m.chunkOverlap)
	if err != nil {
		m.fail(jobID, doc, err)
		return
	}

	if _, err := m.transition(ctx, jobID, core.JobVectorizing, func(j *core.IngestionJob) {
		j.Chunks = len(chunks)
	}); err != nil {
		m.logger.Warn("job aborted before vectorizing", "job", jobID, "err", err)
		return
	}

	var vectors int
	err = RetryWithBackoff(ctx, func() error {
		n, upErr := m.index.UpsertChunks(ctx, chunks)
		vectors = n
		return upErr
	}, m.maxAttempts, m.retryDelay, func(attempt int) {
		m.recordAttempt(jobID, attempt)
	})
	if err != nil {
		m.fail(jobID, doc, err)
		return
	}

	if _, err := m.transition(ctx, jobID, core.JobCompleted, func(j *core.IngestionJob) {
		j.Vectors = vectors
	}); err != nil {
		m.logger.Warn("job aborted before completion", "job", jobID, "err", err)
		return
	}

	doc.Status = core.DocumentReady
	if err := m.documents.UpdateDocument(context.Background(), doc); err != nil {
		m.logger.Warn("failed to mark document ready", "document", doc.ID, "err", err)
	}

	m.logger.Info("ingestion completed", "job", jobID, "document", doc.ID,
		"chunks", len(chunks), "vectors", vectors)
}

// transition applies a guarded state change. Terminal jobs return
// ErrJobAlreadyTerminal with the job untouched.
func (m *Manager) transition(ctx context.Context, jobID string, next core.JobState, mutate func(*core.IngestionJob)) (*core.IngestionJob, error) {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: ingestion job %s", core.ErrNotFound, jobID)
	}
	if job.State.Terminal() {
		return job, fmt.Errorf("%w: job %s is %s", core.ErrJobAlreadyTerminal, jobID, job.State)
	}
	if !job.State.CanTransitionTo(next) {
		return job, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, job.State, next)
	}

	job.State = next
	if mutate != nil {
		mutate(job)
	}
	if err := m.jobs.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// fail moves the job to failed and marks the document failed. Cancelled
// jobs are left alone; Cancel already settled their state.
func (m *Manager) fail(jobID string, doc *core.Document, cause error) {
	ctx := context.Background()

	job, err := m.transition(ctx, jobID, core.JobFailed, func(j *core.IngestionJob) {
		j.Error = cause.Error()
	})
	if err != nil {
		if !errors.Is(err, core.ErrJobAlreadyTerminal) {
			m.logger.Error("failed to fail job", "job", jobID, "err", err)
		}
		return
	}

	doc.Status = core.DocumentFailed
	if err := m.documents.UpdateDocument(ctx, doc); err != nil {
		m.logger.Warn("failed to mark document failed", "document", doc.ID, "err", err)
	}

	m.logger.Error("ingestion failed", "job", job.ID, "document", doc.ID, "err", cause)
}

func (m *Manager) recordAttempt(jobID string, attempt int) {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	job, err := m.jobs.GetJob(context.Background(), jobID)
	if err != nil || job.State.Terminal() {
		return
	}
	job.Attempt = attempt
	if err := m.jobs.UpdateJob(context.Background(), job); err != nil {
		m.logger.Debug("failed to record attempt", "job", jobID, "err", err)
	}
}

func (m *Manager) release(jobID string) {
	m.mu.Lock()
	if cancel, ok := m.active[jobID]; ok {
		cancel()
		delete(m.active, jobID)
	}
	m.mu.Unlock()
}
