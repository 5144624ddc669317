package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/postprocessors/chunker"
	"github.com/custodia-labs/docrag/internal/postprocessors/dedupe"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("dedupe", buildDedupe)
}

// NewChunkingPipeline builds the chunker followed by the processors named
// in cfg.Processors.
func NewChunkingPipeline(r *Registry, cfg domain.ChunkSettings) (*Pipeline, error) {
	first, err := r.Build("chunker", map[string]any{
		"chunk_size": cfg.ChunkSize,
		"overlap":    cfg.Overlap,
	})
	if err != nil {
		return nil, err
	}

	p := NewPipeline(first)
	for _, name := range cfg.Processors {
		if name == "chunker" {
			return nil, fmt.Errorf("%w: chunker may only run first", domain.ErrInvalidInput)
		}
		proc, err := r.Build(name, nil)
		if err != nil {
			return nil, err
		}
		p.Add(proc)
	}
	return p, nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 500)
//   - overlap (int): Overlapping characters between chunks (default: 50)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if _, ok := cfg["overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
		}
	}

	return chunker.New(opts...), nil
}

// buildDedupe creates a duplicate-chunk filter.
// Supported config keys:
//   - min_length (int): chunks shorter than this are always kept (default: 0)
func buildDedupe(cfg map[string]any) (driven.PostProcessor, error) {
	return dedupe.New(getIntFromConfig(cfg, "min_length")), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
