package driven

import "context"

// LLMService turns a grounded prompt into answer text. The answer generator
// is the only caller; it owns retries and the per-attempt deadline.
type LLMService interface {
	// Generate returns the completion for prompt. It must return promptly
	// once ctx is done and keep ctx.Err() in the returned error chain.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName is reported in answer metadata.
	ModelName() string

	// Ping fails when the backend cannot serve the configured model.
	Ping(ctx context.Context) error

	Close() error
}

// GenerateOptions are sampling limits. Zero values leave the backend default.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	StopWords   []string
}
