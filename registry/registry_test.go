package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage/badger"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *badger.Repositories) {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })
	return New(repos.Routing, opts...), repos
}

func TestRegisterIdempotent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := reg.Register(ctx, &core.A2AServer{
		Name:           "mesh-a",
		Endpoint:       "http://mesh-a:9000",
		SubjectsServed: []string{"math-1"},
	})
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	if first.Health != core.HealthUnknown {
		t.Fatalf("Expected unknown health, got %s", first.Health)
	}

	second, err := reg.Register(ctx, &core.A2AServer{
		Name:     "mesh-a-again",
		Endpoint: "http://mesh-a:9000",
	})
	if err != nil {
		t.Fatalf("Failed to re-register: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("Expected same server, got %s and %s", first.ID, second.ID)
	}

	servers, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("Expected 1 server, got %d", len(servers))
	}
}

func TestRegisterValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Register(context.Background(), &core.A2AServer{Name: "no-endpoint"})
	if err == nil {
		t.Fatal("Expected validation error")
	}
}

func TestOutcomeTransitions(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	server, err := reg.Register(ctx, &core.A2AServer{Name: "mesh-b", Endpoint: "http://mesh-b:9000"})
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	// One failure degrades, three consecutive make it unreachable.
	if got := reg.ReportOutcome(server.ID, false); got != core.HealthDegraded {
		t.Fatalf("Expected degraded after 1 failure, got %s", got)
	}
	reg.ReportOutcome(server.ID, false)
	if got := reg.ReportOutcome(server.ID, false); got != core.HealthUnreachable {
		t.Fatalf("Expected unreachable after 3 failures, got %s", got)
	}

	// Any success resets.
	if got := reg.ReportOutcome(server.ID, true); got != core.HealthHealthy {
		t.Fatalf("Expected healthy after success, got %s", got)
	}
	if got := reg.Health(server.ID); got != core.HealthHealthy {
		t.Fatalf("Expected healthy snapshot, got %s", got)
	}
}

func TestCheckHealthProbe(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	reg, _ := newTestRegistry(t, WithMaxFailures(2))
	ctx := context.Background()

	server, err := reg.Register(ctx, &core.A2AServer{Name: "mesh-c", Endpoint: upstream.URL})
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	status, err := reg.CheckHealth(ctx, server.ID)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if status != core.HealthHealthy {
		t.Fatalf("Expected healthy, got %s", status)
	}

	healthy.Store(false)
	reg.CheckHealth(ctx, server.ID)
	status, _ = reg.CheckHealth(ctx, server.ID)
	if status != core.HealthUnreachable {
		t.Fatalf("Expected unreachable after repeated probe failures, got %s", status)
	}

	// Persisted record carries the probed status.
	stored, err := reg.Get(ctx, server.ID)
	if err != nil {
		t.Fatalf("Failed to get server: %v", err)
	}
	if stored.Health != core.HealthUnreachable {
		t.Fatalf("Expected stored health unreachable, got %s", stored.Health)
	}
	if stored.Health.Routable() {
		t.Fatal("Unreachable server must not be routable")
	}
}
