package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider(t *testing.T) {
	assert.True(t, AIProviderOllama.IsValid())
	assert.True(t, AIProviderOpenAI.IsValid())
	assert.False(t, AIProvider("bogus").IsValid())
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.Equal(t, unknownDescription, AIProvider("bogus").Description())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbeddingSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "k"}.IsConfigured())
	assert.False(t, EmbeddingSettings{}.IsConfigured())
}

func TestDefaultSettings_Valid(t *testing.T) {
	s := DefaultSettings()
	assert.NoError(t, s.Validate())
	assert.Equal(t, 768, s.Embedding.Dimensions)
	assert.Equal(t, 500, s.Chunk.ChunkSize)
	assert.Equal(t, 50, s.Chunk.Overlap)
	assert.InDelta(t, 0.7, s.Vector.RelevanceThreshold, 1e-9)
	assert.InDelta(t, 0.5, s.Answer.ConfidenceThreshold, 1e-9)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"file size too small", func(s *Settings) { s.Parser.MaxFileSizeMB = 0 }},
		{"file size too large", func(s *Settings) { s.Parser.MaxFileSizeMB = 501 }},
		{"chunk too small", func(s *Settings) { s.Chunk.ChunkSize = 50 }},
		{"overlap too large", func(s *Settings) { s.Chunk.Overlap = 600 }},
		{"overlap not below chunk", func(s *Settings) { s.Chunk.ChunkSize = 100; s.Chunk.Overlap = 100 }},
		{"zero dims", func(s *Settings) { s.Embedding.Dimensions = 0 }},
		{"threshold out of range", func(s *Settings) { s.Vector.RelevanceThreshold = 1.5 }},
		{"zero threshold", func(s *Settings) { s.Vector.RelevanceThreshold = 0 }},
		{"negative threshold", func(s *Settings) { s.Vector.RelevanceThreshold = -0.1 }},
		{"zero concurrency", func(s *Settings) { s.Indexing.MaxConcurrent = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidInput)
		})
	}
}
