package file

import (
	"fmt"
	"os"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Configuration keys, as flattened from config.toml.
const (
	KeyDataDir = "data_dir"

	KeyEmbeddingProvider   = "embedding.provider"
	KeyEmbeddingModel      = "embedding.model"
	KeyEmbeddingBaseURL    = "embedding.base_url"
	KeyEmbeddingAPIKey     = "embedding.api_key"
	KeyEmbeddingDimensions = "embedding.dimensions"
	KeyEmbeddingRetries    = "embedding.max_retries"
	KeyEmbeddingBatchSize  = "embedding.batch_size"
	KeyEmbeddingRPS        = "embedding.requests_per_second"

	KeyLLMProvider    = "llm.provider"
	KeyLLMModel       = "llm.model"
	KeyLLMBaseURL     = "llm.base_url"
	KeyLLMAPIKey      = "llm.api_key"
	KeyLLMTemperature = "llm.temperature"
	KeyLLMMaxTokens   = "llm.max_tokens"
	KeyLLMTimeout     = "llm.timeout"
	KeyLLMRetries     = "llm.max_retries"

	KeyRedisAddr          = "vector.redis_addr"
	KeyRedisPassword      = "vector.redis_password"
	KeyRedisDB            = "vector.redis_db"
	KeyIndexName          = "vector.index_name"
	KeyRelevanceThreshold = "vector.relevance_threshold"

	KeyMaxFileSizeMB  = "parser.max_file_size_mb"
	KeySkipEmptyPages = "parser.skip_empty_pages"
	KeyEncoding       = "parser.encoding"

	KeyChunkSize       = "chunk.chunk_size"
	KeyChunkOverlap    = "chunk.overlap"
	KeyChunkProcessors = "chunk.processors"

	KeyIndexBatchSize     = "indexing.batch_size"
	KeyIndexMaxConcurrent = "indexing.max_concurrent"
	KeyIndexRetries       = "indexing.max_retries"

	KeyConfidenceThreshold = "answer.confidence_threshold"
)

// Environment variables that override the file.
const (
	EnvRedisAddr      = "DOCRAG_REDIS_ADDR"
	EnvOllamaURL      = "DOCRAG_OLLAMA_URL"
	EnvOllamaModel    = "DOCRAG_OLLAMA_MODEL"
	EnvEmbedModel     = "DOCRAG_EMBED_MODEL"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvDataDir        = "DOCRAG_DATA_DIR"
	EnvRequestTimeout = "DOCRAG_REQUEST_TIMEOUT"
)

// LoadSettings layers config values and then environment overrides on top
// of domain.DefaultSettings and validates the result. getenv defaults to
// os.Getenv.
func LoadSettings(cfg driven.ConfigSource, getenv func(string) string) (domain.Settings, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	s := domain.DefaultSettings()

	if cfg != nil {
		applyFile(&s, cfg)
	}
	applyEnv(&s, getenv)

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func applyFile(s *domain.Settings, cfg driven.ConfigSource) {
	str := func(key string, dst *string) {
		if v := cfg.GetString(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if _, ok := cfg.Get(key); ok {
			*dst = cfg.GetInt(key)
		}
	}
	float := func(key string, dst *float64) {
		if _, ok := cfg.Get(key); ok {
			*dst = cfg.GetFloat(key)
		}
	}

	str(KeyDataDir, &s.DataDir)

	var provider string
	str(KeyEmbeddingProvider, &provider)
	if provider != "" {
		s.Embedding.Provider = domain.AIProvider(provider)
	}
	str(KeyEmbeddingModel, &s.Embedding.Model)
	str(KeyEmbeddingBaseURL, &s.Embedding.BaseURL)
	str(KeyEmbeddingAPIKey, &s.Embedding.APIKey)
	num(KeyEmbeddingDimensions, &s.Embedding.Dimensions)
	num(KeyEmbeddingRetries, &s.Embedding.MaxRetries)
	num(KeyEmbeddingBatchSize, &s.Embedding.BatchSize)
	float(KeyEmbeddingRPS, &s.Embedding.RequestsPerSecond)

	provider = ""
	str(KeyLLMProvider, &provider)
	if provider != "" {
		s.LLM.Provider = domain.AIProvider(provider)
	}
	str(KeyLLMModel, &s.LLM.Model)
	str(KeyLLMBaseURL, &s.LLM.BaseURL)
	str(KeyLLMAPIKey, &s.LLM.APIKey)
	float(KeyLLMTemperature, &s.LLM.Temperature)
	num(KeyLLMMaxTokens, &s.LLM.MaxTokens)
	if d := cfg.GetDuration(KeyLLMTimeout); d > 0 {
		s.LLM.Timeout = d
	}
	num(KeyLLMRetries, &s.LLM.MaxRetries)

	str(KeyRedisAddr, &s.Vector.RedisAddr)
	str(KeyRedisPassword, &s.Vector.RedisPassword)
	num(KeyRedisDB, &s.Vector.RedisDB)
	str(KeyIndexName, &s.Vector.IndexName)
	float(KeyRelevanceThreshold, &s.Vector.RelevanceThreshold)

	num(KeyMaxFileSizeMB, &s.Parser.MaxFileSizeMB)
	if _, ok := cfg.Get(KeySkipEmptyPages); ok {
		s.Parser.SkipEmptyPages = cfg.GetBool(KeySkipEmptyPages)
	}
	str(KeyEncoding, &s.Parser.Encoding)

	num(KeyChunkSize, &s.Chunk.ChunkSize)
	num(KeyChunkOverlap, &s.Chunk.Overlap)
	if p := cfg.GetStringSlice(KeyChunkProcessors); p != nil {
		s.Chunk.Processors = p
	}

	num(KeyIndexBatchSize, &s.Indexing.BatchSize)
	num(KeyIndexMaxConcurrent, &s.Indexing.MaxConcurrent)
	num(KeyIndexRetries, &s.Indexing.MaxRetries)

	float(KeyConfidenceThreshold, &s.Answer.ConfidenceThreshold)
}

// applyEnv applies overrides. The Ollama URL only applies to services
// using the Ollama provider; the OpenAI key only to OpenAI ones.
func applyEnv(s *domain.Settings, getenv func(string) string) {
	if v := getenv(EnvDataDir); v != "" {
		s.DataDir = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		s.Vector.RedisAddr = v
	}
	if v := getenv(EnvOllamaURL); v != "" {
		if s.Embedding.Provider == domain.AIProviderOllama {
			s.Embedding.BaseURL = v
		}
		if s.LLM.Provider == domain.AIProviderOllama {
			s.LLM.BaseURL = v
		}
	}
	if v := getenv(EnvOllamaModel); v != "" {
		s.LLM.Model = v
	}
	if v := getenv(EnvEmbedModel); v != "" {
		s.Embedding.Model = v
	}
	if v := getenv(EnvOpenAIKey); v != "" {
		if s.Embedding.Provider == domain.AIProviderOpenAI && s.Embedding.APIKey == "" {
			s.Embedding.APIKey = v
		}
		if s.LLM.Provider == domain.AIProviderOpenAI && s.LLM.APIKey == "" {
			s.LLM.APIKey = v
		}
	}
	if v := getenv(EnvRequestTimeout); v != "" {
		if d := parseDuration(v); d > 0 {
			s.LLM.Timeout = d
		}
	}
}
