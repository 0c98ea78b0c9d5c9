package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores/qdrant"

	"github.com/collazomanuel/cetec-asistente-backend/ai"
	"github.com/collazomanuel/cetec-asistente-backend/vectorstore"
)

const requestTimeout = 30 * time.Second

// Config holds connection settings for a Qdrant collection.
type Config struct {
	// URL is the base URL of the Qdrant HTTP API.
	// Example: "http://localhost:6333"
	URL string

	// APIKey authenticates requests. Empty for unsecured local instances.
	APIKey string

	// Collection is the collection name chunks are stored in.
	Collection string

	// VectorDim is the embedding dimensionality used when the collection
	// has to be created. Must match the configured embedding model.
	VectorDim int
}

// Store implements vectorstore.Index backed by Qdrant.
type Store struct {
	store      qdrant.Store
	config     Config
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

var _ vectorstore.Index = (*Store)(nil)

// embedderAdapter exposes an ai.Embedder through the langchaingo
// embeddings.Embedder surface.
type embedderAdapter struct {
	inner ai.Embedder
}

func (a embedderAdapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return a.inner.EmbedTexts(ctx, texts)
}

func (a embedderAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return a.inner.EmbedText(ctx, text)
}

// NewStore creates a Store for the configured collection.
//
// Returns vectorstore.Index interface to enforce abstraction.
func NewStore(config Config, embedder ai.Embedder) (vectorstore.Index, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if config.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if config.VectorDim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	baseURL, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant URL: %w", err)
	}

	store, err := qdrant.New(
		qdrant.WithURL(*baseURL),
		qdrant.WithAPIKey(config.APIKey),
		qdrant.WithCollectionName(config.Collection),
		qdrant.WithEmbedder(embedderAdapter{inner: embedder}),
	)
	if err != nil {
		return nil, err
	}

	return &Store{
		store:      store,
		config:     config,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     slog.Default().With("component", "qdrant-store"),
	}, nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	s.logger.Info("creating collection", "collection", s.config.Collection, "dim", s.config.VectorDim)

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.config.VectorDim,
			"distance": "Cosine",
		},
	}
	return s.doRequest(ctx, http.MethodPut, s.collectionPath(""), body)
}

// UpsertChunks embeds and stores chunks as Qdrant points. Each point carries
// the document ID, subject, title and sequence in its payload so chunks can
// be filtered and cited.
func (s *Store) UpsertChunks(ctx context.Context, chunks []vectorstore.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	docs := make([]schema.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = schema.Document{
			PageContent: chunk.Text,
			Metadata: map[string]any{
				"doc_id":  chunk.DocumentID,
				"subject": chunk.SubjectID,
				"title":   chunk.Title,
				"chunk":   chunk.Seq,
			},
		}
	}

	ids, err := s.store.AddDocuments(ctx, docs)
	if err != nil {
		s.logger.Error("failed to upsert chunks", "count", len(chunks), "err", err)
		return 0, err
	}
	return len(ids), nil
}

// DeleteDocument removes every point whose payload references the document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "doc_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	return s.doRequest(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), body)
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *Store) collectionPath(suffix string) string {
	return fmt.Sprintf("/collections/%s%s", s.config.Collection, suffix)
}

func (s *Store) collectionExists(ctx context.Context) (bool, error) {
	endpoint := s.baseURL.JoinPath("collections", s.config.Collection, "exists")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, err
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("qdrant collection check failed with status %d", resp.StatusCode)
	}

	var result struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Result.Exists, nil
}

func (s *Store) doRequest(ctx context.Context, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	endpoint := *s.baseURL
	rel, err := url.Parse(path)
	if err != nil {
		return err
	}
	target := endpoint.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed with status %d", method, path, resp.StatusCode)
	}
	return nil
}

func (s *Store) setHeaders(req *http.Request) {
	if s.config.APIKey != "" {
		req.Header.Set("api-key", s.config.APIKey)
	}
}
