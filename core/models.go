package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID generates a new unique identifier for domain entities.
func NewID() string { return uuid.NewString() }

// KeyFromContent generates a deterministic key from text content using BLAKE2b
// hashing. Identical content always produces the same key, which makes it
// suitable for idempotency markers (e.g. webhook replay detection).
func KeyFromContent(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// SessionStatus is the lifecycle state of an upload session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// Terminal reports whether the session can no longer change state.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionExpired
}

// UploadSession tracks a single presigned upload grant from issuance to
// completion or expiry. Once a session reaches a terminal status it is
// never mutated again.
type UploadSession struct {
	ID          string        `json:"sessionId"`
	SubjectID   string        `json:"subjectId"`
	FileName    string        `json:"fileName"`
	ContentType string        `json:"contentType"`
	ObjectKey   string        `json:"objectKey"`
	GrantedURL  string        `json:"url"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	Status      SessionStatus `json:"status"`
	// DocumentID is set when the session completes, so duplicate completion
	// calls can return the same Document.
	DocumentID string    `json:"documentId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DocumentStatus is the ingestion-visible state of a stored document.
type DocumentStatus string

const (
	DocumentStored    DocumentStatus = "stored"
	DocumentIngesting DocumentStatus = "ingesting"
	DocumentReady     DocumentStatus = "ready"
	DocumentFailed    DocumentStatus = "failed"
)

// Document is a teacher-supplied file that completed its upload and is a
// candidate for vectorization. Status follows the latest associated
// IngestionJob.
type Document struct {
	ID             string         `json:"id"`
	SubjectID      string         `json:"subjectId"`
	SourceUploadID string         `json:"sourceUploadId"`
	FileName       string         `json:"fileName"`
	ObjectKey      string         `json:"objectKey"`
	Size           int64          `json:"size"`
	Checksum       string         `json:"checksum,omitempty"`
	Status         DocumentStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// JobState is a node in the ingestion job state machine.
type JobState string

const (
	JobQueued      JobState = "queued"
	JobRunning     JobState = "running"
	JobVectorizing JobState = "vectorizing"
	JobCompleted   JobState = "completed"
	JobFailed      JobState = "failed"
	JobCancelled   JobState = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. Transitions are monotonic forward through
// queued -> running -> vectorizing -> completed, with failed and cancelled
// reachable from any non-terminal state.
func (s JobState) CanTransitionTo(next JobState) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case JobFailed, JobCancelled:
		return true
	case JobRunning:
		return s == JobQueued
	case JobVectorizing:
		return s == JobRunning
	case JobCompleted:
		return s == JobVectorizing
	default:
		return false
	}
}

// IngestionJob tracks a single vectorization run for a document. At most one
// non-terminal job may exist per document at any time. Attempt and the
// retry bookkeeping are persisted so retries survive a restart.
type IngestionJob struct {
	ID         string    `json:"jobId"`
	DocumentID string    `json:"documentId"`
	SubjectID  string    `json:"subjectId"`
	State      JobState  `json:"state"`
	Attempt    int       `json:"attempt"`
	Chunks     int       `json:"chunks"`
	Vectors    int       `json:"vectors"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HealthStatus is the last-observed health of an A2A server.
type HealthStatus string

const (
	HealthUnknown     HealthStatus = "unknown"
	HealthHealthy     HealthStatus = "healthy"
	HealthDegraded    HealthStatus = "degraded"
	HealthUnreachable HealthStatus = "unreachable"
)

// Routable reports whether the resolver may pick a server in this state.
func (h HealthStatus) Routable() bool {
	return h == HealthHealthy || h == HealthDegraded
}

// A2AServer is a registered backend that answers student conversations for
// one or more subjects.
type A2AServer struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Endpoint       string       `json:"endpoint"`
	SubjectsServed []string     `json:"subjectsServed"`
	Health         HealthStatus `json:"health"`
	LastCheckedAt  time.Time    `json:"lastCheckedAt"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// RoutingRule maps a subject pattern to a target server. SubjectMatch uses
// path.Match glob syntax (e.g. "math-*").
type RoutingRule struct {
	SubjectMatch   string `json:"subjectMatch"`
	TargetServerID string `json:"targetServerId"`
	Weight         int    `json:"weight,omitempty"`
}

// RoutingPolicy is the singleton, versioned routing document. Updates
// replace the active version atomically; readers always see a consistent
// snapshot.
type RoutingPolicy struct {
	Version         int           `json:"version"`
	Rules           []RoutingRule `json:"rules"`
	DefaultServerID string        `json:"defaultServerId,omitempty"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Conversation is created by the conversation CRUD surface; the orchestrator
// reads its subject and appends messages as turns finish.
type Conversation struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Citation points at source material backing an assistant answer.
type Citation struct {
	Title      string  `json:"title"`
	URI        string  `json:"uri"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"docId,omitempty"`
}

// Message is a single finished turn in a conversation. History only ever
// contains finished turns; partial streams are never persisted.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	RoutedTo       string      `json:"routedTo,omitempty"`
	Subject        string      `json:"subject,omitempty"`
	Citations      []Citation  `json:"citations,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}
