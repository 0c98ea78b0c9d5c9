package objectstore

import (
	"context"
	"time"
)

// Store is the blob store surface used by upload and ingestion.
// Implementations must be thread-safe for concurrent use.
type Store interface {
	// PresignPut returns a URL that grants a direct PUT of the object until
	// expiresAt.
	PresignPut(objectKey, contentType string, expiresAt time.Time) (string, error)

	// Fetch retrieves the object's content.
	Fetch(ctx context.Context, objectKey string) ([]byte, error)

	// Delete removes the object. Deleting a missing object is a no-op.
	Delete(ctx context.Context, objectKey string) error

	// Close releases resources held by the store.
	Close() error
}
