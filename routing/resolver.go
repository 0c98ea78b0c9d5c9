package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"sync/atomic"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

// HealthView provides the server health snapshot resolution decisions are
// made against. The registry implements it.
type HealthView interface {
	// Health returns the current health status for a server.
	Health(id string) core.HealthStatus

	// Has reports whether the server is registered.
	Has(id string) bool
}

// Resolver maps subjects to target servers according to the active policy.
// Resolution reads an atomic policy snapshot and is safe for concurrent use.
type Resolver struct {
	repo   storage.RoutingRepository
	health HealthView
	logger *slog.Logger

	policy atomic.Pointer[core.RoutingPolicy]
	mu     sync.Mutex // serializes policy updates
}

// NewResolver creates a Resolver and loads the stored policy. A missing
// policy starts empty at version 0; every resolution fails until rules are
// installed.
func NewResolver(ctx context.Context, repo storage.RoutingRepository, health HealthView) (*Resolver, error) {
	r := &Resolver{
		repo:   repo,
		health: health,
		logger: slog.Default().With("component", "resolver"),
	}

	stored, err := repo.GetPolicy(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		stored = &core.RoutingPolicy{Version: 0}
	}
	r.policy.Store(stored)

	return r, nil
}

// Policy returns the active policy snapshot.
func (r *Resolver) Policy() *core.RoutingPolicy {
	return r.policy.Load()
}

// Resolve returns the server a subject's traffic should go to.
// The first rule whose pattern matches the subject wins; an unroutable
// target falls back to the policy default. Returns ErrNoRouteAvailable when
// neither is routable.
func (r *Resolver) Resolve(subjectID string) (string, error) {
	policy := r.policy.Load()

	for _, rule := range policy.Rules {
		matched, err := path.Match(rule.SubjectMatch, subjectID)
		if err != nil || !matched {
			continue
		}
		if r.health.Health(rule.TargetServerID).Routable() {
			return rule.TargetServerID, nil
		}
		r.logger.Warn("matched target not routable, trying default",
			"subject", subjectID, "target", rule.TargetServerID)
		break
	}

	if policy.DefaultServerID != "" && r.health.Health(policy.DefaultServerID).Routable() {
		return policy.DefaultServerID, nil
	}

	return "", fmt.Errorf("%w: no routable server for subject %s", core.ErrNoRouteAvailable, subjectID)
}

// Default returns the policy's default server, empty when none is set.
func (r *Resolver) Default() string {
	return r.policy.Load().DefaultServerID
}

// UpdatePolicy validates and installs a new policy. Every rule target and
// the default must reference a registered server. The stored version is
// bumped and the snapshot swapped atomically, so in-flight resolutions keep
// seeing a consistent policy.
func (r *Resolver) UpdatePolicy(ctx context.Context, rules []core.RoutingRule, defaultServerID string) (*core.RoutingPolicy, error) {
	next := &core.RoutingPolicy{
		Rules:           rules,
		DefaultServerID: defaultServerID,
	}
	if err := core.ValidatePolicy(next); err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if !r.health.Has(rule.TargetServerID) {
			return nil, fmt.Errorf("%w: rule target %s is not registered", core.ErrInvalidPolicy, rule.TargetServerID)
		}
	}
	if defaultServerID != "" && !r.health.Has(defaultServerID) {
		return nil, fmt.Errorf("%w: default server %s is not registered", core.ErrInvalidPolicy, defaultServerID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next.Version = r.policy.Load().Version + 1
	if err := r.repo.PutPolicy(ctx, next); err != nil {
		return nil, err
	}
	r.policy.Store(next)

	r.logger.Info("routing policy updated", "version", next.Version, "rules", len(next.Rules))
	return next, nil
}
