// Package ingestion drives documents through the vectorization pipeline.
//
// The Manager owns the ingestion job state machine: queued, running,
// vectorizing, completed, with failed and cancelled reachable from any
// non-terminal state. Each document has at most one non-terminal job at a
// time; starting a second one fails with ErrJobConflict.
//
// Jobs run on a worker pool. A job fetches the document from the object
// store, splits it into chunks, indexes them in the vector store, and marks
// the document ready. Transient indexing failures are retried with
// exponential backoff before the job fails.
package ingestion
