package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	// FetchFunc is called by Fetch if set.
	FetchFunc func(ctx context.Context, objectKey string) ([]byte, error)

	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put seeds an object, standing in for a client's direct upload.
func (s *MemoryStore) Put(objectKey string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey] = content
}

// PresignPut returns a fake grant URL.
func (s *MemoryStore) PresignPut(objectKey, contentType string, expiresAt time.Time) (string, error) {
	return fmt.Sprintf("memory://objects/%s?expires=%d", objectKey, expiresAt.Unix()), nil
}

// Fetch returns the seeded content or an error for missing objects.
func (s *MemoryStore) Fetch(ctx context.Context, objectKey string) ([]byte, error) {
	if s.FetchFunc != nil {
		return s.FetchFunc(ctx, objectKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectKey)
	}
	return content, nil
}

// Delete removes the object and records the deletion.
func (s *MemoryStore) Delete(ctx context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	s.deleted = append(s.deleted, objectKey)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Deleted returns the object keys passed to Delete.
func (s *MemoryStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
