package driven

import "context"

// EmbeddingService maps text to fixed-size vectors. Dimensions must equal
// the size the VectorIndex was created with.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in order. Any failure fails
	// the whole batch.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	ModelName() string

	// Ping makes the cheapest request the backend supports.
	Ping(ctx context.Context) error

	Close() error
}

// ModelLister enumerates installed models for the startup model check.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
