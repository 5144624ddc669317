// Package ai builds the embedding and language model adapters named in the
// settings.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/docrag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docrag/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/custodia-labs/docrag/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docrag/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

const pingTimeout = 5 * time.Second

var embeddingProviders = map[domain.AIProvider]func(*domain.EmbeddingSettings) (driven.EmbeddingService, error){
	domain.AIProviderOllama: func(s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: s.Dimensions,
		}), nil
	},
	domain.AIProviderOpenAI: func(s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     s.APIKey,
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: s.Dimensions,
		})
	},
}

// LLM adapters get no request timeout from settings: the answer generator
// bounds every attempt through its context.
var llmProviders = map[domain.AIProvider]func(*domain.LLMSettings) (driven.LLMService, error){
	domain.AIProviderOllama: func(s *domain.LLMSettings) (driven.LLMService, error) {
		return ollamallm.NewLLMService(ollamallm.LLMConfig{BaseURL: s.BaseURL, Model: s.Model}), nil
	},
	domain.AIProviderOpenAI: func(s *domain.LLMSettings) (driven.LLMService, error) {
		return openaillm.NewLLMService(openaillm.LLMConfig{APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.Model})
	},
}

// Services is the pair of adapters the core needs.
type Services struct {
	Embedding driven.EmbeddingService
	LLM       driven.LLMService
}

// New builds both adapters without contacting either backend.
func New(settings domain.Settings) (*Services, error) {
	emb, err := CreateEmbeddingService(&settings.Embedding)
	switch {
	case err != nil:
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	case emb == nil:
		return nil, fmt.Errorf("%w: provider %q is not configured", domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}

	llm, err := CreateLLMService(&settings.LLM)
	if err == nil && llm == nil {
		err = fmt.Errorf("provider %q is not configured", settings.LLM.Provider)
	}
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	return &Services{Embedding: emb, LLM: llm}, nil
}

// Validate pings the embedding backend, then the LLM, sharing one five
// second budget. The error points at the config section to fix.
func (s *Services) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.Embedding.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w (check the [embedding] section of the config)", domain.ErrEmbeddingUnavailable, err)
	}
	if err := s.LLM.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w (check the [llm] section of the config)", domain.ErrLLMUnavailable, err)
	}
	return nil
}

// Close closes whichever adapters are set.
func (s *Services) Close() {
	if s.Embedding != nil {
		_ = s.Embedding.Close()
	}
	if s.LLM != nil {
		_ = s.LLM.Close()
	}
}

// CreateEmbeddingService returns nil, nil when settings name no usable
// provider.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	build, ok := embeddingProviders[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported embedding provider %q", settings.Provider)
	}
	return build(settings)
}

// CreateLLMService returns nil, nil when settings name no usable provider.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	build, ok := llmProviders[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider %q", settings.Provider)
	}
	return build(settings)
}
