package storage

import (
	"context"
	"time"

	"github.com/collazomanuel/cetec-asistente-backend/core"
)

// Repository provides operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// UploadRepository manages upload sessions.
type UploadRepository interface {
	Repository

	// AddSessions persists one or more new upload sessions.
	AddSessions(ctx context.Context, sessions ...*core.UploadSession) error

	// GetSession retrieves a session by ID.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id string) (*core.UploadSession, error)

	// GetSessionByObjectKey retrieves a session by its object key, used to
	// correlate storage webhooks that carry only the key.
	// Returns ErrNotFound if no session matches.
	GetSessionByObjectKey(ctx context.Context, objectKey string) (*core.UploadSession, error)

	// UpdateSession rewrites an existing session.
	// Returns ErrNotFound if the session doesn't exist.
	UpdateSession(ctx context.Context, session *core.UploadSession) error

	// DueSessions returns pending sessions whose expiry is at or before now,
	// ordered by expiry. Used by the coordinator's sweeper.
	DueSessions(ctx context.Context, now time.Time) ([]*core.UploadSession, error)
}

// DocumentRepository manages document records.
type DocumentRepository interface {
	Repository

	// AddDocument persists a new document.
	AddDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// UpdateDocument rewrites an existing document.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, doc *core.Document) error

	// ListDocumentsBySubject returns all documents for a subject, newest
	// first.
	ListDocumentsBySubject(ctx context.Context, subjectID string) ([]*core.Document, error)
}

// JobRepository manages ingestion jobs and maintains the single active job
// invariant per document.
type JobRepository interface {
	Repository

	// CreateJob persists a new job and marks it as the document's active
	// job. Returns ErrDuplicateKey if a non-terminal job already exists for
	// the document; the check and insert are a single transaction.
	CreateJob(ctx context.Context, job *core.IngestionJob) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.IngestionJob, error)

	// UpdateJob rewrites an existing job. When the job has reached a
	// terminal state the document's active-job marker is cleared in the
	// same transaction, permitting a new job to start.
	UpdateJob(ctx context.Context, job *core.IngestionJob) error

	// ActiveJobForDocument returns the document's current non-terminal job.
	// Returns ErrNotFound when there is none.
	ActiveJobForDocument(ctx context.Context, documentID string) (*core.IngestionJob, error)
}

// RoutingRepository manages A2A server records and the routing policy
// document.
type RoutingRepository interface {
	Repository

	// AddServer persists a server registration. Registration is idempotent
	// by endpoint: re-registering an existing endpoint returns the existing
	// record unchanged.
	AddServer(ctx context.Context, server *core.A2AServer) (*core.A2AServer, error)

	// GetServer retrieves a server by ID.
	// Returns ErrNotFound if the server doesn't exist.
	GetServer(ctx context.Context, id string) (*core.A2AServer, error)

	// UpdateServer rewrites an existing server record.
	UpdateServer(ctx context.Context, server *core.A2AServer) error

	// ListServers returns all registered servers.
	ListServers(ctx context.Context) ([]*core.A2AServer, error)

	// GetPolicy returns the active routing policy.
	// Returns ErrNotFound when no policy has been stored yet.
	GetPolicy(ctx context.Context) (*core.RoutingPolicy, error)

	// PutPolicy replaces the stored policy document.
	PutPolicy(ctx context.Context, policy *core.RoutingPolicy) error
}

// ChatRepository manages conversations and their message history.
type ChatRepository interface {
	Repository

	// AddConversation persists a new conversation.
	AddConversation(ctx context.Context, conv *core.Conversation) error

	// GetConversation retrieves a conversation by ID.
	// Returns ErrNotFound if the conversation doesn't exist.
	GetConversation(ctx context.Context, id string) (*core.Conversation, error)

	// AppendMessage appends a finished message to a conversation's history.
	// Appending is idempotent by message ID: a replay returns false with no
	// side effects.
	AppendMessage(ctx context.Context, msg *core.Message) (bool, error)

	// ListMessages returns up to limit messages of a conversation in
	// chronological order. A limit of 0 means no limit.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*core.Message, error)
}
