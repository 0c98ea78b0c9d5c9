package badger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

func TestJobBasics(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	job := &core.IngestionJob{
		ID:         core.NewID(),
		DocumentID: core.NewID(),
		SubjectID:  "algebra-1",
		State:      core.JobQueued,
	}

	if err := repos.Jobs.CreateJob(ctx, job); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	retrieved, err := repos.Jobs.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if retrieved.State != core.JobQueued {
		t.Fatalf("Expected queued state, got %s", retrieved.State)
	}

	active, err := repos.Jobs.ActiveJobForDocument(ctx, job.DocumentID)
	if err != nil {
		t.Fatalf("Failed to get active job: %v", err)
	}
	if active.ID != job.ID {
		t.Fatalf("Expected active job %s, got %s", job.ID, active.ID)
	}
}

func TestJobSingleActivePerDocument(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()
	docID := core.NewID()

	first := &core.IngestionJob{ID: core.NewID(), DocumentID: docID, State: core.JobQueued}
	if err := repos.Jobs.CreateJob(ctx, first); err != nil {
		t.Fatalf("Failed to create first job: %v", err)
	}

	second := &core.IngestionJob{ID: core.NewID(), DocumentID: docID, State: core.JobQueued}
	err = repos.Jobs.CreateJob(ctx, second)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Finishing the first job clears the marker and a new job may start.
	first.State = core.JobCompleted
	if err := repos.Jobs.UpdateJob(ctx, first); err != nil {
		t.Fatalf("Failed to update job: %v", err)
	}
	if _, err := repos.Jobs.ActiveJobForDocument(ctx, docID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after terminal update, got %v", err)
	}
	if err := repos.Jobs.CreateJob(ctx, second); err != nil {
		t.Fatalf("Failed to create job after first completed: %v", err)
	}
}

func TestJobCreateRaceSingleWinner(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()
	docID := core.NewID()

	const racers = 8
	results := make([]error, racers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			job := &core.IngestionJob{ID: core.NewID(), DocumentID: docID, State: core.JobQueued}
			results[i] = repos.Jobs.CreateJob(ctx, job)
		}(i)
	}
	close(start)
	wg.Wait()

	var created int
	for _, res := range results {
		switch {
		case res == nil:
			created++
		case errors.Is(res, storage.ErrDuplicateKey):
		default:
			t.Fatalf("Racing create must lose with ErrDuplicateKey, got %v", res)
		}
	}
	if created != 1 {
		t.Fatalf("Expected exactly one racing create to win, got %d", created)
	}

	if _, err := repos.Jobs.ActiveJobForDocument(ctx, docID); err != nil {
		t.Fatalf("Expected an active job after the race: %v", err)
	}
}

func TestJobUpdateMissing(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	job := &core.IngestionJob{ID: core.NewID(), DocumentID: core.NewID(), State: core.JobRunning}
	err = repos.Jobs.UpdateJob(context.Background(), job)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
