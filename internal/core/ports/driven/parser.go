package driven

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// Parser converts a file into page-structured text plus metadata.
// Each parser handles a fixed set of file extensions.
type Parser interface {
	// SupportedExtensions returns lower-case extensions including the dot.
	SupportedExtensions() []string

	// Parse reads and validates the file at path.
	Parse(ctx context.Context, path string) (*domain.ParsedDocument, error)
}

// Chunker splits parsed documents into overlapping passages.
type Chunker interface {
	// ChunkDocument joins the document's pages and splits the result.
	// Returns domain.ErrEmptyContent when there is no text.
	ChunkDocument(doc *domain.ParsedDocument, documentID string) ([]domain.TextChunk, error)
}

// PostProcessor is one stage of the chunking pipeline. The first stage
// receives nil chunks and creates them; later stages filter or rewrite.
type PostProcessor interface {
	// Name returns the processor's registry name.
	Name() string

	// Process returns the chunks for doc after this stage.
	Process(doc *domain.ParsedDocument, documentID string, chunks []domain.TextChunk) ([]domain.TextChunk, error)
}
