package driven

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// MetadataStore is the relational store for SourceDocument rows.
// Writes go through a MetadataTx so the indexing pipeline can hold an
// uncommitted row while it writes vectors.
type MetadataStore interface {
	// Begin opens a write transaction.
	Begin(ctx context.Context) (MetadataTx, error)

	// GetDocument retrieves a committed document by ID.
	// Returns domain.ErrNotFound when absent.
	GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error)

	// ListDocuments returns all committed documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.SourceDocument, error)

	// FindBySource returns the documents recorded for an origin path.
	FindBySource(ctx context.Context, source string) ([]domain.SourceDocument, error)

	// Close releases resources.
	Close() error
}

// MetadataTx is an open relational write. Exactly one of Commit or Rollback
// must be called; Rollback after Commit is a no-op.
type MetadataTx interface {
	// SaveDocument inserts the document row.
	SaveDocument(ctx context.Context, doc *domain.SourceDocument) error

	// DeleteDocument removes a row and reports whether it existed.
	DeleteDocument(ctx context.Context, id string) (bool, error)

	// Commit makes the writes durable.
	Commit() error

	// Rollback discards the writes.
	Rollback() error
}

// HistoryStore persists search history and feedback.
type HistoryStore interface {
	// SaveQuery records a query under the caller-assigned queryID.
	SaveQuery(ctx context.Context, queryID, userID, query, sessionID string) error

	// SaveResponse records the answer for a saved query.
	SaveResponse(ctx context.Context, queryID string, answer *domain.GeneratedAnswer) error

	// UserHistory returns a page of a user's queries, newest first.
	UserHistory(ctx context.Context, userID string, page, pageSize int) (*domain.HistoryPage, error)

	// SaveFeedback records a rating.
	SaveFeedback(ctx context.Context, fb domain.Feedback) error
}
