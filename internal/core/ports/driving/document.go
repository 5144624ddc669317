package driving

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// IndexingService ingests and removes documents.
type IndexingService interface {
	// IndexDocument runs the full ingest pipeline for one file.
	// Failures are reported in the result, never as a Go error.
	IndexDocument(ctx context.Context, path string, opts domain.IndexOptions) domain.IndexingResult

	// IndexBatch indexes many files with bounded concurrency.
	// It returns one result per input path, in input order.
	IndexBatch(ctx context.Context, paths []string, opts domain.IndexOptions) []domain.IndexingResult

	// Delete removes a document's vectors and its metadata row.
	Delete(ctx context.Context, documentID string) bool
}

// DocumentService lists committed documents.
type DocumentService interface {
	// List returns all committed documents.
	List(ctx context.Context) ([]domain.SourceDocument, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.SourceDocument, error)
}
