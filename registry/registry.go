package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

const (
	defaultMaxFailures  = 3
	defaultProbeTimeout = 2 * time.Second
)

// serverHealth tracks the in-memory health counters for one server.
type serverHealth struct {
	status           core.HealthStatus
	consecutiveFails int
	lastChecked      time.Time
}

// Registry manages A2A server registrations and their health counters.
// All methods are safe for concurrent use.
type Registry struct {
	repo        storage.RoutingRepository
	httpClient  *http.Client
	logger      *slog.Logger
	maxFailures int

	mu     sync.RWMutex
	health map[string]*serverHealth
}

// Option is a functional option for configuring a Registry.
type Option func(*Registry)

// WithMaxFailures sets how many consecutive failures mark a server
// unreachable.
func WithMaxFailures(n int) Option {
	return func(r *Registry) {
		r.maxFailures = n
	}
}

// WithProbeTimeout sets the HTTP timeout for health probes.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.httpClient.Timeout = d
	}
}

// New creates a Registry backed by the given repository.
func New(repo storage.RoutingRepository, opts ...Option) *Registry {
	r := &Registry{
		repo:        repo,
		httpClient:  &http.Client{Timeout: defaultProbeTimeout},
		logger:      slog.Default().With("component", "registry"),
		maxFailures: defaultMaxFailures,
		health:      make(map[string]*serverHealth),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a server to the catalog. Registration is idempotent by
// endpoint: registering the same endpoint twice returns the existing record.
func (r *Registry) Register(ctx context.Context, server *core.A2AServer) (*core.A2AServer, error) {
	if err := core.ValidateServer(server); err != nil {
		return nil, err
	}
	if server.ID == "" {
		server.ID = core.NewID()
	}
	if server.Health == "" {
		server.Health = core.HealthUnknown
	}

	stored, err := r.repo.AddServer(ctx, server)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, ok := r.health[stored.ID]; !ok {
		r.health[stored.ID] = &serverHealth{
			status:      stored.Health,
			lastChecked: stored.LastCheckedAt,
		}
	}
	r.mu.Unlock()

	r.logger.Info("server registered", "server", stored.ID, "endpoint", stored.Endpoint)
	return stored, nil
}

// Get returns a server record with current health applied.
func (r *Registry) Get(ctx context.Context, id string) (*core.A2AServer, error) {
	server, err := r.repo.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}
	r.applyHealth(server)
	return server, nil
}

// List returns all registered servers with current health applied.
func (r *Registry) List(ctx context.Context) ([]*core.A2AServer, error) {
	servers, err := r.repo.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	for _, server := range servers {
		r.applyHealth(server)
	}
	return servers, nil
}

// Health returns the current health status for a server, HealthUnknown when
// the server has never been observed.
func (r *Registry) Health(id string) core.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.health[id]; ok {
		return h.status
	}
	return core.HealthUnknown
}

// Has reports whether the server is known to the registry.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	if _, ok := r.health[id]; ok {
		r.mu.RUnlock()
		return true
	}
	r.mu.RUnlock()

	_, err := r.repo.GetServer(context.Background(), id)
	return err == nil
}

// CheckHealth performs an active probe of the server's /health endpoint and
// updates its status.
func (r *Registry) CheckHealth(ctx context.Context, id string) (core.HealthStatus, error) {
	server, err := r.repo.GetServer(ctx, id)
	if err != nil {
		return core.HealthUnknown, err
	}

	err = r.probe(ctx, server.Endpoint)
	status := r.recordOutcome(id, err == nil)

	server.Health = status
	server.LastCheckedAt = time.Now().UTC()
	if updateErr := r.repo.UpdateServer(ctx, server); updateErr != nil {
		r.logger.Warn("failed to persist health", "server", id, "err", updateErr)
	}

	return status, nil
}

// ReportOutcome feeds the result of a relayed call into the server's health
// counters. A success restores the server to healthy; failures degrade it
// and eventually mark it unreachable.
func (r *Registry) ReportOutcome(id string, ok bool) core.HealthStatus {
	return r.recordOutcome(id, ok)
}

func (r *Registry) recordOutcome(id string, ok bool) core.HealthStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, exists := r.health[id]
	if !exists {
		h = &serverHealth{status: core.HealthUnknown}
		r.health[id] = h
	}
	h.lastChecked = time.Now().UTC()

	if ok {
		if h.status != core.HealthHealthy {
			r.logger.Info("server recovered", "server", id)
		}
		h.status = core.HealthHealthy
		h.consecutiveFails = 0
		return h.status
	}

	h.consecutiveFails++
	if h.consecutiveFails >= r.maxFailures {
		if h.status != core.HealthUnreachable {
			r.logger.Warn("server unreachable", "server", id, "fails", h.consecutiveFails)
		}
		h.status = core.HealthUnreachable
	} else {
		h.status = core.HealthDegraded
	}
	return h.status
}

func (r *Registry) probe(ctx context.Context, endpoint string) error {
	target := strings.TrimSuffix(endpoint, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Registry) applyHealth(server *core.A2AServer) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.health[server.ID]; ok {
		server.Health = h.status
		server.LastCheckedAt = h.lastChecked
	}
}
