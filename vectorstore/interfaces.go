package vectorstore

import "context"

// Chunk is a single indexable fragment of a document.
type Chunk struct {
	// DocumentID identifies the document the chunk was cut from.
	DocumentID string

	// SubjectID scopes the chunk to a subject for filtered retrieval.
	SubjectID string

	// Title is the human-readable document title used in citations.
	Title string

	// Seq is the chunk's position within the document, starting at 0.
	Seq int

	// Text is the chunk content that gets embedded.
	Text string
}

// Index is the vector database surface used by ingestion.
// Implementations must be thread-safe for concurrent use.
type Index interface {
	// EnsureCollection creates the backing collection if it doesn't exist.
	// Calling it on an existing collection is a no-op.
	EnsureCollection(ctx context.Context) error

	// UpsertChunks embeds and stores the given chunks, returning the number
	// of vectors written.
	UpsertChunks(ctx context.Context, chunks []Chunk) (int, error)

	// DeleteDocument removes every stored vector belonging to the document.
	// Deleting a document with no vectors is a no-op.
	DeleteDocument(ctx context.Context, documentID string) error

	// Close releases resources held by the index.
	Close() error
}
