package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string

	// Dimensions is fixed for the life of the index.
	Dimensions int

	// MaxRetries bounds single-item embedding attempts.
	MaxRetries int

	// BatchSize is the sub-batch size for EmbedBatch.
	BatchSize int

	// RequestsPerSecond throttles provider calls. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int

	// Timeout is the hard wall-clock limit per generation attempt.
	Timeout time.Duration

	// MaxRetries bounds generation attempts on timeout.
	MaxRetries int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorSettings configures the vector index.
type VectorSettings struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	IndexName     string

	// RelevanceThreshold drops hits whose normalised score is below it.
	RelevanceThreshold float64
}

// ParserSettings configures document parsing.
type ParserSettings struct {
	MaxFileSizeMB  int
	SkipEmptyPages bool
	Encoding       string
}

// ChunkSettings configures the chunker.
type ChunkSettings struct {
	ChunkSize int
	Overlap   int

	// Processors names extra pipeline stages run after the chunker.
	Processors []string
}

// IndexingSettings configures batch indexing.
type IndexingSettings struct {
	BatchSize     int
	MaxConcurrent int
	MaxRetries    int
}

// AnswerSettings configures answer generation.
type AnswerSettings struct {
	// ConfidenceThreshold is the minimum mean relevance needed to call the LLM.
	ConfidenceThreshold float64
}

// Settings is the complete application configuration.
type Settings struct {
	DataDir   string
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Vector    VectorSettings
	Parser    ParserSettings
	Chunk     ChunkSettings
	Indexing  IndexingSettings
	Answer    AnswerSettings
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOllama,
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			Dimensions: 768,
			MaxRetries: 3,
			BatchSize:  5,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       "llama3.2:1b",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.7,
			MaxTokens:   500,
			Timeout:     60 * time.Second,
			MaxRetries:  3,
		},
		Vector: VectorSettings{
			RedisAddr:          "localhost:6379",
			IndexName:          "rag_document_chunks",
			RelevanceThreshold: 0.7,
		},
		Parser: ParserSettings{
			MaxFileSizeMB:  100,
			SkipEmptyPages: true,
			Encoding:       "utf-8",
		},
		Chunk: ChunkSettings{
			ChunkSize: 500,
			Overlap:   50,
		},
		Indexing: IndexingSettings{
			BatchSize:     5,
			MaxConcurrent: 5,
			MaxRetries:    3,
		},
		Answer: AnswerSettings{
			ConfidenceThreshold: 0.5,
		},
	}
}

// Validate checks ranges of the numeric settings.
func (s Settings) Validate() error {
	if s.Parser.MaxFileSizeMB < 1 || s.Parser.MaxFileSizeMB > 500 {
		return fmt.Errorf("%w: max_file_size_mb must be 1-500, got %d", ErrInvalidInput, s.Parser.MaxFileSizeMB)
	}
	if s.Chunk.ChunkSize < 100 || s.Chunk.ChunkSize > 2000 {
		return fmt.Errorf("%w: chunk_size must be 100-2000, got %d", ErrInvalidInput, s.Chunk.ChunkSize)
	}
	if s.Chunk.Overlap < 0 || s.Chunk.Overlap > 500 || s.Chunk.Overlap >= s.Chunk.ChunkSize {
		return fmt.Errorf("%w: overlap must be 0-500 and below chunk_size, got %d", ErrInvalidInput, s.Chunk.Overlap)
	}
	if s.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", ErrInvalidInput)
	}
	if s.Vector.RelevanceThreshold <= 0 || s.Vector.RelevanceThreshold > 1 {
		return fmt.Errorf("%w: relevance threshold must be within (0,1], got %g", ErrInvalidInput, s.Vector.RelevanceThreshold)
	}
	if s.Answer.ConfidenceThreshold < 0 || s.Answer.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold must be within [0,1]", ErrInvalidInput)
	}
	if s.Indexing.MaxConcurrent < 1 || s.Indexing.BatchSize < 1 {
		return fmt.Errorf("%w: indexing batch size and concurrency must be positive", ErrInvalidInput)
	}
	return nil
}
