package driven

import "context"

// Vector index field names. The schema is fixed.
const (
	FieldDocumentID  = "document_id"
	FieldContent     = "content"
	FieldEmbedding   = "embedding"
	FieldChunkIndex  = "chunk_index"
	FieldAccessLevel = "access_level"
	FieldDepartment  = "department"
	FieldMetadata    = "metadata"
	FieldPageNumber  = "page_number"
)

// VectorRow is one chunk and its embedding as stored in the index.
type VectorRow struct {
	DocumentID  string
	Content     string
	Embedding   []float32
	ChunkIndex  int
	AccessLevel int
	Department  string

	// Metadata holds document_title, document_source, chunk_length,
	// total_chunks and page_number.
	Metadata map[string]any
}

// VectorIndex stores chunk embeddings and answers filtered similarity queries.
// Predicates use RediSearch query syntax over the access_level NUMERIC,
// department TAG and document_id TAG fields. An empty predicate matches everything.
type VectorIndex interface {
	// Insert writes rows to the index.
	Insert(ctx context.Context, rows []VectorRow) error

	// Search returns up to limit nearest neighbours restricted to predicate,
	// ordered by the index's own ranking. fields selects returned attributes.
	Search(ctx context.Context, vector []float32, predicate string, limit int, fields []string) ([]VectorHit, error)

	// Delete removes every row matching predicate and reports how many were removed.
	Delete(ctx context.Context, predicate string) (int, error)

	// DocumentIDs returns the distinct document ids present in the index.
	DocumentIDs(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Similarity is the raw cosine similarity in [-1, 1].
	Similarity float64

	// Fields holds the requested attributes keyed by field name.
	Fields map[string]any
}
