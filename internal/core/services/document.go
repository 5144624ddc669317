package services

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService reads committed document metadata.
type DocumentService struct {
	store driven.MetadataStore
}

// NewDocumentService creates a new document service.
func NewDocumentService(store driven.MetadataStore) *DocumentService {
	return &DocumentService{store: store}
}

// List returns all committed documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.SourceDocument, error) {
	return s.store.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.SourceDocument, error) {
	if documentID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.store.GetDocument(ctx, documentID)
}
