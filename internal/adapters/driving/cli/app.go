package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/docrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/docrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docrag/internal/adapters/driven/vector/redis"
	"github.com/custodia-labs/docrag/internal/connectors/filesystem"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/core/services"
	"github.com/custodia-labs/docrag/internal/logger"
	"github.com/custodia-labs/docrag/internal/normalisers"
	"github.com/custodia-labs/docrag/internal/postprocessors"
)

// Indexer is the indexing surface the CLI drives.
type Indexer interface {
	driving.IndexingService
	IndexWithRetry(ctx context.Context, path string, opts domain.IndexOptions) domain.IndexingResult
	DeleteBySource(ctx context.Context, source string) (int, error)
	Reconcile(ctx context.Context) ([]string, error)
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options selects how services are built.
type Options struct {
	// Memory replaces SQLite and Redis with in-process stores.
	Memory bool

	// ConfigDir holds config.toml and prompts/. Empty means ~/.docrag.
	ConfigDir string
}

// Services is the wired application.
type Services struct {
	Settings  domain.Settings
	Indexing  Indexer
	Answer    driving.AnswerService
	Retrieval driving.RetrievalService
	Documents driving.DocumentService
	History   driving.HistoryService

	// Lookup lets the scanner skip files whose content is unchanged.
	Lookup filesystem.SourceLookup

	// Supports reports whether a path has a parser.
	Supports func(path string) bool

	Health []HealthCheck

	closers []func() error
}

// Close releases every resource in reverse order of acquisition.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Services) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Bootstrap loads configuration and wires the stores, AI providers and
// core services.
func Bootstrap(ctx context.Context, opts Options) (_ *Services, err error) {
	cfgStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settings, err := file.LoadSettings(cfgStore, nil)
	if err != nil {
		return nil, err
	}

	promptDir := ""
	if opts.ConfigDir != "" {
		promptDir = filepath.Join(opts.ConfigDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}

	s := &Services{Settings: settings}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	aiServices, err := ai.New(settings)
	if err != nil {
		return nil, err
	}
	s.onClose(func() error { aiServices.Close(); return nil })

	var (
		metadata driven.MetadataStore
		history  driven.HistoryStore
		index    driven.VectorIndex
	)
	if opts.Memory {
		m := memory.NewMetadataStore()
		metadata, history = m, memory.NewHistoryStore()
		index = memory.NewVectorIndex(settings.Embedding.Dimensions)
		s.onClose(m.Close)
		s.onClose(index.Close)
	} else {
		store, err := sqlite.NewStore(settings.DataDir)
		if err != nil {
			return nil, fmt.Errorf("%w: open metadata store: %w", domain.ErrPersistenceFailed, err)
		}
		s.onClose(store.Close)
		metadata, history = store, store

		rdx, err := redis.New(ctx, redis.Config{
			Addr:       settings.Vector.RedisAddr,
			Password:   settings.Vector.RedisPassword,
			DB:         settings.Vector.RedisDB,
			IndexName:  settings.Vector.IndexName,
			Dimensions: settings.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: open vector index: %w", domain.ErrPersistenceFailed, err)
		}
		s.onClose(rdx.Close)
		index = rdx
		s.Health = append(s.Health, HealthCheck{Name: "redis", Check: rdx.Ping})
	}

	parser := normalisers.NewDefaultRegistry(settings.Parser)
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	chunker, err := postprocessors.NewChunkingPipeline(registry, settings.Chunk)
	if err != nil {
		return nil, fmt.Errorf("chunk processors: %w", err)
	}

	embedder := services.NewEmbeddingGenerator(aiServices.Embedding, services.EmbeddingConfigFrom(settings.Embedding))
	indexer := services.NewIndexer(parser, chunker, embedder, index, metadata,
		services.IndexerConfigFrom(settings.Indexing),
		services.WithContentHasher(filesystem.HashFile))
	retriever := services.NewRetriever(embedder, index, settings.Vector.RelevanceThreshold)
	generator := services.NewAnswerGenerator(aiServices.LLM, prompts,
		services.AnswerConfigFrom(settings.LLM, settings.Answer))
	search := services.NewSearchService(retriever, generator, history)

	s.Indexing = indexer
	s.Answer = search
	s.Retrieval = search
	s.Documents = services.NewDocumentService(metadata)
	s.History = services.NewHistoryService(history)
	s.Lookup = metadata
	s.Supports = parser.Supports
	s.Health = append(s.Health,
		HealthCheck{Name: "ai providers", Check: aiServices.Validate},
		HealthCheck{Name: "embedding model", Check: embedder.Verify},
	)

	logger.Event("debug", "bootstrap.done",
		"memory", opts.Memory,
		"embedding", settings.Embedding.Provider,
		"llm", settings.LLM.Provider,
		"dimensions", settings.Embedding.Dimensions)
	return s, nil
}
