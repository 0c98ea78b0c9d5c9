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

package cetec

import (
	"context"
	"log/slog"
	"time"

	"github.com/collazomanuel/cetec-asistente-backend/ai"
	"github.com/collazomanuel/cetec-asistente-backend/ai/openai"
	"github.com/collazomanuel/cetec-asistente-backend/ingestion"
	"github.com/collazomanuel/cetec-asistente-backend/objectstore"
	"github.com/collazomanuel/cetec-asistente-backend/registry"
	"github.com/collazomanuel/cetec-asistente-backend/relay"
	"github.com/collazomanuel/cetec-asistente-backend/routing"
	"github.com/collazomanuel/cetec-asistente-backend/server"
	"github.com/collazomanuel/cetec-asistente-backend/storage/badger"
	"github.com/collazomanuel/cetec-asistente-backend/upload"
	"github.com/collazomanuel/cetec-asistente-backend/vectorstore"
	"github.com/collazomanuel/cetec-asistente-backend/vectorstore/qdrant"
)

// Config collects everything the orchestrator needs to run.
type Config struct {
	DBPath     string
	ListenAddr string

	EmbeddingHost  string
	EmbeddingModel string

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	VectorDim        int

	ObjectStoreURL    string
	ObjectStoreSecret []byte

	WebhookSecret []byte

	GrantTTL      time.Duration
	ProbeInterval time.Duration

	MaxAttempts  int
	RetryDelay   time.Duration
	PoolSize     int
	ChunkSize    int
	ChunkOverlap int
}

// App assembles the repositories and services behind the HTTP surface.
type App struct {
	repos     *badger.Repositories
	store     objectstore.Store
	index     vectorstore.Index
	registry  *registry.Registry
	prober    *registry.Prober
	resolver  *routing.Resolver
	uploads   *upload.Coordinator
	ingestion *ingestion.Manager
	engine    *relay.Engine
	server    *server.Server

	probeInterval time.Duration
	grantTTL      time.Duration
	logger        *slog.Logger
}

const defaultSweepInterval = time.Minute

// NewApp wires the full service graph from cfg. The returned App owns every
// resource it opened; Close releases them in reverse order.
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	repos, err := badger.NewRepositories(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(cfg.EmbeddingHost),
		ai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err := aiConfig.Validate(); err != nil {
		repos.Close()
		return nil, err
	}
	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		repos.Close()
		return nil, err
	}

	index, err := qdrant.NewStore(qdrant.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		VectorDim:  cfg.VectorDim,
	}, embedder)
	if err != nil {
		repos.Close()
		return nil, err
	}

	store, err := objectstore.NewHTTPStore(cfg.ObjectStoreURL, cfg.ObjectStoreSecret)
	if err != nil {
		index.Close()
		repos.Close()
		return nil, err
	}

	reg := registry.New(repos.Routing)

	resolver, err := routing.NewResolver(ctx, repos.Routing, reg)
	if err != nil {
		store.Close()
		index.Close()
		repos.Close()
		return nil, err
	}

	var uploadOpts []upload.Option
	if cfg.GrantTTL > 0 {
		uploadOpts = append(uploadOpts, upload.WithGrantTTL(cfg.GrantTTL))
	}
	uploads := upload.NewCoordinator(repos.Uploads, repos.Documents, store, uploadOpts...)

	var ingestionOpts []ingestion.Option
	if cfg.PoolSize > 0 {
		ingestionOpts = append(ingestionOpts, ingestion.WithPoolSize(cfg.PoolSize))
	}
	if cfg.MaxAttempts > 0 && cfg.RetryDelay > 0 {
		ingestionOpts = append(ingestionOpts, ingestion.WithRetry(cfg.MaxAttempts, cfg.RetryDelay))
	}
	if cfg.ChunkSize > 0 {
		ingestionOpts = append(ingestionOpts, ingestion.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap))
	}
	manager, err := ingestion.NewManager(repos.Jobs, repos.Documents, store, index, ingestionOpts...)
	if err != nil {
		store.Close()
		index.Close()
		repos.Close()
		return nil, err
	}

	engine, err := relay.NewEngine(repos.Chat, resolver, reg, relay.NewHTTPClient(10*time.Second))
	if err != nil {
		manager.Release()
		store.Close()
		index.Close()
		repos.Close()
		return nil, err
	}

	srv, err := server.NewServer(server.Deps{
		Uploads:       uploads,
		Documents:     repos.Documents,
		Ingestion:     manager,
		Registry:      reg,
		Resolver:      resolver,
		Engine:        engine,
		WebhookSecret: cfg.WebhookSecret,
	})
	if err != nil {
		manager.Release()
		store.Close()
		index.Close()
		repos.Close()
		return nil, err
	}

	probeInterval := cfg.ProbeInterval
	if probeInterval <= 0 {
		probeInterval = 30 * time.Second
	}

	return &App{
		repos:         repos,
		store:         store,
		index:         index,
		registry:      reg,
		prober:        registry.NewProber(reg, probeInterval),
		resolver:      resolver,
		uploads:       uploads,
		ingestion:     manager,
		engine:        engine,
		server:        srv,
		probeInterval: probeInterval,
		logger:        slog.Default().With("component", "app"),
	}, nil
}

// Run bootstraps the vector collection, starts the background loops and
// serves HTTP on addr until ctx is cancelled.
func (a *App) Run(ctx context.Context, addr string) error {
	if err := a.index.EnsureCollection(ctx); err != nil {
		return err
	}

	a.prober.Start(ctx)
	a.uploads.StartSweeper(ctx, defaultSweepInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", "error", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// Close stops the background loops and releases every owned resource.
func (a *App) Close() error {
	a.prober.Stop()
	a.uploads.StopSweeper()
	a.ingestion.Wait()
	a.ingestion.Release()

	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing object store", "error", err)
	}
	if err := a.index.Close(); err != nil {
		a.logger.Error("error closing vector index", "error", err)
	}
	return a.repos.Close()
}

// Registry exposes the A2A server directory.
func (a *App) Registry() *registry.Registry { return a.registry }

// Resolver exposes the routing policy view.
func (a *App) Resolver() *routing.Resolver { return a.resolver }

// Uploads exposes the upload coordinator.
func (a *App) Uploads() *upload.Coordinator { return a.uploads }

// Ingestion exposes the ingestion job manager.
func (a *App) Ingestion() *ingestion.Manager { return a.ingestion }

// Engine exposes the chat relay engine.
func (a *App) Engine() *relay.Engine { return a.engine }
