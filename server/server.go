// Copyright 2025 CETEC Asistente Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/collazomanuel/cetec-asistente-backend/ingestion"
	"github.com/collazomanuel/cetec-asistente-backend/registry"
	"github.com/collazomanuel/cetec-asistente-backend/relay"
	"github.com/collazomanuel/cetec-asistente-backend/routing"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
	"github.com/collazomanuel/cetec-asistente-backend/upload"
)

// Deps collects the services a Server fronts.
type Deps struct {
	Uploads   *upload.Coordinator
	Documents storage.DocumentRepository
	Ingestion *ingestion.Manager
	Registry  *registry.Registry
	Resolver  *routing.Resolver
	Engine    *relay.Engine

	// WebhookSecret signs inbound webhook bodies. Empty disables
	// verification, which is only acceptable in tests.
	WebhookSecret []byte

	Logger *slog.Logger
}

// Server is the HTTP surface of the orchestrator.
type Server struct {
	uploads       *upload.Coordinator
	documents     storage.DocumentRepository
	ingestion     *ingestion.Manager
	registry      *registry.Registry
	resolver      *routing.Resolver
	engine        *relay.Engine
	webhookSecret []byte
	logger        *slog.Logger

	httpServer *http.Server
}

var ErrIncompleteDeps = errors.New("server requires uploads, documents, ingestion, registry, resolver and engine")

// NewServer creates a Server from its dependencies.
func NewServer(deps Deps) (*Server, error) {
	if deps.Uploads == nil || deps.Documents == nil || deps.Ingestion == nil ||
		deps.Registry == nil || deps.Resolver == nil || deps.Engine == nil {
		return nil, ErrIncompleteDeps
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		uploads:       deps.Uploads,
		documents:     deps.Documents,
		ingestion:     deps.Ingestion,
		registry:      deps.Registry,
		resolver:      deps.Resolver,
		engine:        deps.Engine,
		webhookSecret: deps.WebhookSecret,
		logger:        logger.With("component", "server"),
	}, nil
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/uploads/presign", s.handlePresign)
		api.Post("/uploads/complete", s.handleCompleteUpload)
		api.Get("/uploads/{id}", s.handleGetSession)

		api.Get("/documents", s.handleListDocuments)
		api.Get("/documents/{id}", s.handleGetDocument)

		api.Post("/ingestions", s.handleStartIngestion)
		api.Get("/ingestions/{id}", s.handleGetIngestion)
		api.Post("/ingestions/{id}/cancel", s.handleCancelIngestion)

		api.Get("/routing/policy", s.handleGetPolicy)
		api.Patch("/routing/policy", s.handleUpdatePolicy)

		api.Get("/a2a/servers", s.handleListServers)
		api.Post("/a2a/servers", s.handleRegisterServer)
		api.Get("/a2a/servers/{id}/health", s.handleServerHealth)

		api.Post("/conversations", s.handleCreateConversation)
		api.Get("/conversations/{id}/messages", s.handleListMessages)
		api.Post("/conversations/{id}/messages", s.handleSendMessage)
		api.Post("/conversations/{id}/messages/stream", s.handleStreamMessage)
		api.Post("/runs/{id}/cancel", s.handleCancelRun)
	})

	r.Post("/webhooks/s3", s.withSignature(s.handleStorageWebhook))
	r.Post("/webhooks/a2a/{id}/callback", s.withSignature(s.handleA2ACallback))

	return r
}

// Start begins serving on addr and blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE responses stay open indefinitely.
	}
	s.logger.Info("listening", "addr", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
