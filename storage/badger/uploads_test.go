package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

func TestUploadSessionBasics(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	session := &core.UploadSession{
		ID:          core.NewID(),
		SubjectID:   "algebra-1",
		FileName:    "apunte.pdf",
		ContentType: "application/pdf",
		ObjectKey:   "algebra-1/s1_apunte.pdf",
		ExpiresAt:   now.Add(15 * time.Minute),
		Status:      core.SessionPending,
	}

	if err := repos.Uploads.AddSessions(ctx, session); err != nil {
		t.Fatalf("Failed to add session: %v", err)
	}

	byID, err := repos.Uploads.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if byID.FileName != "apunte.pdf" {
		t.Fatalf("Expected 'apunte.pdf', got '%s'", byID.FileName)
	}

	byKey, err := repos.Uploads.GetSessionByObjectKey(ctx, session.ObjectKey)
	if err != nil {
		t.Fatalf("Failed to get session by object key: %v", err)
	}
	if byKey.ID != session.ID {
		t.Fatalf("Expected session %s, got %s", session.ID, byKey.ID)
	}
}

func TestUploadDueSessions(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	overdue := &core.UploadSession{
		ID:        core.NewID(),
		SubjectID: "fisica-2",
		ObjectKey: "fisica-2/s1_a.pdf",
		ExpiresAt: now.Add(-1 * time.Minute),
		Status:    core.SessionPending,
	}
	upcoming := &core.UploadSession{
		ID:        core.NewID(),
		SubjectID: "fisica-2",
		ObjectKey: "fisica-2/s2_b.pdf",
		ExpiresAt: now.Add(1 * time.Hour),
		Status:    core.SessionPending,
	}
	if err := repos.Uploads.AddSessions(ctx, overdue, upcoming); err != nil {
		t.Fatalf("Failed to add sessions: %v", err)
	}

	due, err := repos.Uploads.DueSessions(ctx, now)
	if err != nil {
		t.Fatalf("Failed to list due sessions: %v", err)
	}
	if len(due) != 1 || due[0].ID != overdue.ID {
		t.Fatalf("Expected only the overdue session, got %d results", len(due))
	}

	// A completed session drops out of the expiry index.
	overdue.Status = core.SessionCompleted
	if err := repos.Uploads.UpdateSession(ctx, overdue); err != nil {
		t.Fatalf("Failed to update session: %v", err)
	}
	due, err = repos.Uploads.DueSessions(ctx, now)
	if err != nil {
		t.Fatalf("Failed to list due sessions: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("Expected no due sessions, got %d", len(due))
	}
}

func TestUploadSessionMissing(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	if _, err := repos.Uploads.GetSession(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
