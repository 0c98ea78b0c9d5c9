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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	cetec "github.com/collazomanuel/cetec-asistente-backend"
)

func main() {
	app := &cli.App{
		Name:  "cetec-asistente",
		Usage: "Ingestion and routing orchestrator for subject assistants",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the orchestrator HTTP service",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "listen",
						Usage: "HTTP listen address",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
					&cli.StringFlag{
						Name:  "qdrant-url",
						Usage: "Qdrant HTTP API base URL",
						Value: "http://localhost:6333",
					},
					&cli.StringFlag{
						Name:  "qdrant-api-key",
						Usage: "Qdrant API key (empty for unsecured instances)",
					},
					&cli.StringFlag{
						Name:  "qdrant-collection",
						Usage: "Qdrant collection for document chunks",
						Value: "cetec-documents",
					},
					&cli.IntFlag{
						Name:  "vector-dim",
						Usage: "Embedding dimensionality for collection creation",
						Value: 384,
					},
					&cli.StringFlag{
						Name:     "object-store-url",
						Usage:    "Object store base URL for presigned uploads",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "object-store-secret",
						Usage:   "Secret for signing object store URLs",
						EnvVars: []string{"OBJECT_STORE_SECRET"},
					},
					&cli.StringFlag{
						Name:    "webhook-secret",
						Usage:   "Secret for verifying inbound webhook signatures",
						EnvVars: []string{"WEBHOOK_SECRET"},
					},
					&cli.DurationFlag{
						Name:  "grant-ttl",
						Usage: "Lifetime of presigned upload grants",
						Value: 15 * time.Minute,
					},
					&cli.DurationFlag{
						Name:  "probe-interval",
						Usage: "Interval between A2A server health probes",
						Value: 30 * time.Second,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for ingestion operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Ingestion worker pool size (0 uses half the CPUs)",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Target chunk size in characters",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Overlap between adjacent chunks in characters",
						Value: 150,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cetec.Config{
		DBPath:            c.String("db"),
		ListenAddr:        c.String("listen"),
		EmbeddingHost:     c.String("embedding-host"),
		EmbeddingModel:    c.String("embedding-model"),
		QdrantURL:         c.String("qdrant-url"),
		QdrantAPIKey:      c.String("qdrant-api-key"),
		QdrantCollection:  c.String("qdrant-collection"),
		VectorDim:         c.Int("vector-dim"),
		ObjectStoreURL:    c.String("object-store-url"),
		ObjectStoreSecret: []byte(c.String("object-store-secret")),
		WebhookSecret:     []byte(c.String("webhook-secret")),
		GrantTTL:          c.Duration("grant-ttl"),
		ProbeInterval:     c.Duration("probe-interval"),
		MaxAttempts:       c.Int("max-retries"),
		RetryDelay:        c.Duration("retry-delay"),
		PoolSize:          c.Int("pool-size"),
		ChunkSize:         c.Int("chunk-size"),
		ChunkOverlap:      c.Int("chunk-overlap"),
	}

	if len(cfg.WebhookSecret) == 0 {
		slog.Warn("webhook secret not set, inbound webhooks are unverified")
	}

	app, err := cetec.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to assemble service: %w", err)
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			slog.Error("error during shutdown", "error", closeErr)
		}
	}()

	return app.Run(ctx, cfg.ListenAddr)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
