package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage/badger"
)

// staticHealth is a HealthView with fixed statuses.
type staticHealth map[string]core.HealthStatus

func (s staticHealth) Health(id string) core.HealthStatus {
	if status, ok := s[id]; ok {
		return status
	}
	return core.HealthUnknown
}

func (s staticHealth) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func newTestResolver(t *testing.T, health HealthView) *Resolver {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })

	resolver, err := NewResolver(context.Background(), repos.Routing, health)
	if err != nil {
		t.Fatalf("Failed to create resolver: %v", err)
	}
	return resolver
}

func TestResolveFirstMatchWins(t *testing.T) {
	health := staticHealth{
		"srv-a": core.HealthHealthy,
		"srv-b": core.HealthHealthy,
	}
	resolver := newTestResolver(t, health)

	_, err := resolver.UpdatePolicy(context.Background(), []core.RoutingRule{
		{SubjectMatch: "math-*", TargetServerID: "srv-a"},
		{SubjectMatch: "*", TargetServerID: "srv-b"},
	}, "srv-b")
	if err != nil {
		t.Fatalf("Failed to update policy: %v", err)
	}

	target, err := resolver.Resolve("math-2")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if target != "srv-a" {
		t.Fatalf("Expected srv-a, got %s", target)
	}

	target, err = resolver.Resolve("historia-1")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if target != "srv-b" {
		t.Fatalf("Expected srv-b, got %s", target)
	}
}

func TestResolveUnreachableFallsToDefault(t *testing.T) {
	health := staticHealth{
		"srv-a": core.HealthUnreachable,
		"srv-b": core.HealthDegraded,
	}
	resolver := newTestResolver(t, health)

	_, err := resolver.UpdatePolicy(context.Background(), []core.RoutingRule{
		{SubjectMatch: "math-*", TargetServerID: "srv-a"},
	}, "srv-b")
	if err != nil {
		t.Fatalf("Failed to update policy: %v", err)
	}

	// srv-a matches but is unreachable; degraded srv-b still routes.
	target, err := resolver.Resolve("math-2")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if target != "srv-b" {
		t.Fatalf("Expected fallback to srv-b, got %s", target)
	}
}

func TestResolveNoRoute(t *testing.T) {
	health := staticHealth{
		"srv-a": core.HealthUnreachable,
	}
	resolver := newTestResolver(t, health)

	_, err := resolver.UpdatePolicy(context.Background(), []core.RoutingRule{
		{SubjectMatch: "*", TargetServerID: "srv-a"},
	}, "srv-a")
	if err != nil {
		t.Fatalf("Failed to update policy: %v", err)
	}

	_, err = resolver.Resolve("math-2")
	if !errors.Is(err, core.ErrNoRouteAvailable) {
		t.Fatalf("Expected ErrNoRouteAvailable, got %v", err)
	}
}

func TestUpdatePolicyRejectsUnknownTargets(t *testing.T) {
	resolver := newTestResolver(t, staticHealth{"srv-a": core.HealthHealthy})

	_, err := resolver.UpdatePolicy(context.Background(), []core.RoutingRule{
		{SubjectMatch: "*", TargetServerID: "srv-ghost"},
	}, "srv-a")
	if !errors.Is(err, core.ErrInvalidPolicy) {
		t.Fatalf("Expected ErrInvalidPolicy, got %v", err)
	}
}

func TestUpdatePolicyBumpsVersion(t *testing.T) {
	resolver := newTestResolver(t, staticHealth{"srv-a": core.HealthHealthy})
	ctx := context.Background()

	first, err := resolver.UpdatePolicy(ctx, []core.RoutingRule{
		{SubjectMatch: "*", TargetServerID: "srv-a"},
	}, "srv-a")
	if err != nil {
		t.Fatalf("Failed to update policy: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("Expected version 1, got %d", first.Version)
	}

	second, err := resolver.UpdatePolicy(ctx, nil, "srv-a")
	if err != nil {
		t.Fatalf("Failed to update policy: %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("Expected version 2, got %d", second.Version)
	}
	if resolver.Policy().Version != 2 {
		t.Fatalf("Snapshot not swapped, version %d", resolver.Policy().Version)
	}
}
