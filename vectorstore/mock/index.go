package mock

import (
	"context"
	"sync"

	"github.com/collazomanuel/cetec-asistente-backend/vectorstore"
)

// MockIndex is a test double for vectorstore.Index. It records chunks by
// document so tests can assert on what was indexed and deleted.
type MockIndex struct {
	// UpsertFunc is called by UpsertChunks if set.
	UpsertFunc func(ctx context.Context, chunks []vectorstore.Chunk) (int, error)

	// DeleteFunc is called by DeleteDocument if set.
	DeleteFunc func(ctx context.Context, documentID string) error

	mu       sync.Mutex
	byDoc    map[string][]vectorstore.Chunk
	deleted  []string
	ensured  int
	upserted int
}

// NewMockIndex creates a mock index with default in-memory behavior.
func NewMockIndex() *MockIndex {
	return &MockIndex{byDoc: make(map[string][]vectorstore.Chunk)}
}

// EnsureCollection records the call and succeeds.
func (m *MockIndex) EnsureCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured++
	return nil
}

// UpsertChunks stores the chunks grouped by document ID.
func (m *MockIndex) UpsertChunks(ctx context.Context, chunks []vectorstore.Chunk) (int, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, chunks)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		m.byDoc[chunk.DocumentID] = append(m.byDoc[chunk.DocumentID], chunk)
	}
	m.upserted += len(chunks)
	return len(chunks), nil
}

// DeleteDocument drops every stored chunk for the document.
func (m *MockIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, documentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byDoc, documentID)
	m.deleted = append(m.deleted, documentID)
	return nil
}

// Close is a no-op.
func (m *MockIndex) Close() error {
	return nil
}

// ChunksFor returns the stored chunks for a document.
func (m *MockIndex) ChunksFor(documentID string) []vectorstore.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]vectorstore.Chunk(nil), m.byDoc[documentID]...)
}

// Deleted returns the document IDs passed to DeleteDocument.
func (m *MockIndex) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// UpsertCount returns the total number of chunks upserted.
func (m *MockIndex) UpsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserted
}
