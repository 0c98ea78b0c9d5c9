package upload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/objectstore"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

const defaultGrantTTL = 15 * time.Minute

// Coordinator issues upload grants and turns finished uploads into stored
// documents.
type Coordinator struct {
	sessions  storage.UploadRepository
	documents storage.DocumentRepository
	store     objectstore.Store
	grantTTL  time.Duration
	logger    *slog.Logger

	mu sync.Mutex // serializes session completion

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Coordinator)

// WithGrantTTL sets how long an upload grant stays valid.
func WithGrantTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		c.grantTTL = ttl
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(sessions storage.UploadRepository, documents storage.DocumentRepository, store objectstore.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions:  sessions,
		documents: documents,
		store:     store,
		grantTTL:  defaultGrantTTL,
		logger:    slog.Default().With("component", "upload-coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Presign creates a pending upload session and returns it with a grant URL
// for a direct PUT to the object store.
func (c *Coordinator) Presign(ctx context.Context, subjectID, fileName, contentType string) (*core.UploadSession, error) {
	session := &core.UploadSession{
		ID:          core.NewID(),
		SubjectID:   subjectID,
		FileName:    fileName,
		ContentType: contentType,
		Status:      core.SessionPending,
		ExpiresAt:   time.Now().UTC().Add(c.grantTTL),
	}
	session.ObjectKey = fmt.Sprintf("%s/%s_%s", subjectID, session.ID, fileName)

	if err := core.ValidateUploadSession(session); err != nil {
		return nil, err
	}

	grant, err := c.store.PresignPut(session.ObjectKey, contentType, session.ExpiresAt)
	if err != nil {
		return nil, err
	}
	session.GrantedURL = grant

	if err := c.sessions.AddSessions(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("upload session created",
		"session", session.ID, "subject", subjectID, "key", session.ObjectKey)
	return session, nil
}

// GetSession returns an upload session by ID.
func (c *Coordinator) GetSession(ctx context.Context, id string) (*core.UploadSession, error) {
	session, err := c.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: upload session %s", core.ErrNotFound, id)
	}
	return session, nil
}

// Complete marks an upload session finished and creates the stored document.
// The boolean reports whether this call created the document: completing an
// already completed session returns the existing document unchanged with
// created false, so callers can tell a replay from a first delivery.
// Completing after the grant expired marks the session expired and returns
// ErrGrantExpired.
func (c *Coordinator) Complete(ctx context.Context, sessionID string, size int64, checksum string) (*core.Document, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: upload session %s", core.ErrNotFound, sessionID)
	}
	return c.complete(ctx, session, size, checksum)
}

// CompleteByObjectKey completes the session owning the given object key.
// Used by the storage webhook, which only carries the key.
func (c *Coordinator) CompleteByObjectKey(ctx context.Context, objectKey string, size int64, checksum string) (*core.Document, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.sessions.GetSessionByObjectKey(ctx, objectKey)
	if err != nil {
		return nil, false, fmt.Errorf("%w: no upload session for object %s", core.ErrNotFound, objectKey)
	}
	return c.complete(ctx, session, size, checksum)
}

func (c *Coordinator) complete(ctx context.Context, session *core.UploadSession, size int64, checksum string) (*core.Document, bool, error) {
	switch session.Status {
	case core.SessionCompleted:
		doc, err := c.documents.GetDocument(ctx, session.DocumentID)
		return doc, false, err
	case core.SessionExpired:
		return nil, false, fmt.Errorf("%w: upload session %s", core.ErrGrantExpired, session.ID)
	}

	if time.Now().UTC().After(session.ExpiresAt) {
		session.Status = core.SessionExpired
		if err := c.sessions.UpdateSession(ctx, session); err != nil {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: upload session %s", core.ErrGrantExpired, session.ID)
	}

	doc := &core.Document{
		ID:             core.NewID(),
		SubjectID:      session.SubjectID,
		SourceUploadID: session.ID,
		FileName:       session.FileName,
		ObjectKey:      session.ObjectKey,
		Size:           size,
		Checksum:       checksum,
		Status:         core.DocumentStored,
	}
	if err := c.documents.AddDocument(ctx, doc); err != nil {
		return nil, false, err
	}

	session.Status = core.SessionCompleted
	session.DocumentID = doc.ID
	if err := c.sessions.UpdateSession(ctx, session); err != nil {
		return nil, false, err
	}

	c.logger.Info("upload completed", "session", session.ID, "document", doc.ID)
	return doc, true, nil
}

// StartSweeper launches a background loop that expires overdue pending
// sessions every interval.
func (c *Coordinator) StartSweeper(ctx context.Context, interval time.Duration) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep(ctx)
			}
		}
	}()
	c.logger.Info("session sweeper started", "interval", interval)
}

// StopSweeper cancels the sweeper loop and waits for it to exit.
func (c *Coordinator) StopSweeper() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Coordinator) sweep(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	due, err := c.sessions.DueSessions(ctx, time.Now().UTC())
	if err != nil {
		c.logger.Error("failed to list due sessions", "err", err)
		return
	}

	for _, session := range due {
		session.Status = core.SessionExpired
		if err := c.sessions.UpdateSession(ctx, session); err != nil {
			c.logger.Error("failed to expire session", "session", session.ID, "err", err)
			continue
		}
		c.logger.Info("session expired", "session", session.ID)
	}
}
