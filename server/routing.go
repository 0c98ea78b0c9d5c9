package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/collazomanuel/cetec-asistente-backend/core"
)

type policyUpdateRequest struct {
	Rules           []core.RoutingRule `json:"rules"`
	DefaultServerID string             `json:"defaultServerId"`
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.resolver.Policy())
}

func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req policyUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	policy, err := s.resolver.UpdatePolicy(r.Context(), req.Rules, req.DefaultServerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if servers == nil {
		servers = []*core.A2AServer{}
	}
	writeJSON(w, http.StatusOK, servers)
}

func (s *Server) handleRegisterServer(w http.ResponseWriter, r *http.Request) {
	var server core.A2AServer
	if err := decodeJSON(r, &server); err != nil {
		writeError(w, err)
		return
	}
	registered, err := s.registry.Register(r.Context(), &server)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registered)
}

type serverHealthResponse struct {
	ID            string            `json:"id"`
	Health        core.HealthStatus `json:"health"`
	LastCheckedAt time.Time         `json:"lastCheckedAt"`
}

// handleServerHealth returns the cached health of a server. Fresh probes
// run on the Prober schedule, not per request.
func (s *Server) handleServerHealth(w http.ResponseWriter, r *http.Request) {
	server, err := s.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serverHealthResponse{
		ID:            server.ID,
		Health:        server.Health,
		LastCheckedAt: server.LastCheckedAt,
	})
}
