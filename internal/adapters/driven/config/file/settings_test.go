package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func storeWith(t *testing.T, content string) *ConfigStore {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings(nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), s)
}

func TestLoadSettings_FileOverridesDefaults(t *testing.T) {
	store := storeWith(t, `
[embedding]
provider = "openai"
model = "text-embedding-3-small"
api_key = "sk-file"
dimensions = 1536

[llm]
provider = "openai"
model = "gpt-4o-mini"
api_key = "sk-file"
timeout = 30

[vector]
relevance_threshold = 0.75

[chunk]
chunk_size = 1000
overlap = 100
processors = ["dedupe"]

[parser]
skip_empty_pages = false
`)

	s, err := LoadSettings(store, env(nil))
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, s.Embedding.Provider)
	assert.Equal(t, 1536, s.Embedding.Dimensions)
	assert.Equal(t, "gpt-4o-mini", s.LLM.Model)
	assert.Equal(t, 30*time.Second, s.LLM.Timeout)
	assert.InDelta(t, 0.75, s.Vector.RelevanceThreshold, 1e-9)
	assert.Equal(t, 1000, s.Chunk.ChunkSize)
	assert.Equal(t, 100, s.Chunk.Overlap)
	assert.Equal(t, []string{"dedupe"}, s.Chunk.Processors)
	assert.False(t, s.Parser.SkipEmptyPages)

	// Untouched values keep their defaults.
	assert.Equal(t, 0.7, s.LLM.Temperature)
	assert.Equal(t, 100, s.Parser.MaxFileSizeMB)
}

func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	store := storeWith(t, `
[vector]
redis_addr = "redis.internal:6379"
`)

	s, err := LoadSettings(store, env(map[string]string{
		EnvRedisAddr:      "localhost:6380",
		EnvOllamaURL:      "http://gpu-box:11434",
		EnvOllamaModel:    "llama3.2:3b",
		EnvEmbedModel:     "all-minilm",
		EnvDataDir:        "/data",
		EnvRequestTimeout: "90s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "localhost:6380", s.Vector.RedisAddr)
	assert.Equal(t, "http://gpu-box:11434", s.Embedding.BaseURL)
	assert.Equal(t, "http://gpu-box:11434", s.LLM.BaseURL)
	assert.Equal(t, "llama3.2:3b", s.LLM.Model)
	assert.Equal(t, "all-minilm", s.Embedding.Model)
	assert.Equal(t, "/data", s.DataDir)
	assert.Equal(t, 90*time.Second, s.LLM.Timeout)
}

func TestLoadSettings_OpenAIKeyOnlyForOpenAIProviders(t *testing.T) {
	store := storeWith(t, `
[llm]
provider = "openai"
model = "gpt-4o-mini"
`)

	s, err := LoadSettings(store, env(map[string]string{EnvOpenAIKey: "sk-env"}))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", s.LLM.APIKey)
	assert.Empty(t, s.Embedding.APIKey, "ollama embedding needs no key")
}

func TestLoadSettings_Invalid(t *testing.T) {
	store := storeWith(t, `
[chunk]
chunk_size = 50
`)

	_, err := LoadSettings(store, env(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadSettings_ZeroRelevanceThresholdRejected(t *testing.T) {
	store := storeWith(t, `
[vector]
relevance_threshold = 0.0
`)

	_, err := LoadSettings(store, env(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "relevance threshold")
}
