package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// EmbeddingConfig configures the EmbeddingGenerator.
type EmbeddingConfig struct {
	Dimensions int
	MaxRetries int
	BatchSize  int

	// RequestsPerSecond throttles provider calls. Zero disables throttling.
	RequestsPerSecond float64

	Backoff Backoff
}

// DefaultEmbeddingConfig returns the generator defaults.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Dimensions: 768,
		MaxRetries: 3,
		BatchSize:  5,
		Backoff:    Backoff{Base: time.Second, Max: 10 * time.Second},
	}
}

// EmbeddingConfigFrom maps settings onto a generator config.
func EmbeddingConfigFrom(s domain.EmbeddingSettings) EmbeddingConfig {
	cfg := DefaultEmbeddingConfig()
	if s.Dimensions > 0 {
		cfg.Dimensions = s.Dimensions
	}
	if s.MaxRetries > 0 {
		cfg.MaxRetries = s.MaxRetries
	}
	if s.BatchSize > 0 {
		cfg.BatchSize = s.BatchSize
	}
	cfg.RequestsPerSecond = s.RequestsPerSecond
	return cfg
}

// EmbeddingGenerator turns text into fixed-dimension vectors with retry,
// dimension checking and per-item isolation in batches.
type EmbeddingGenerator struct {
	svc     driven.EmbeddingService
	cfg     EmbeddingConfig
	limiter *rate.Limiter

	verifyMu sync.Mutex
	verified bool
}

// NewEmbeddingGenerator wraps svc.
func NewEmbeddingGenerator(svc driven.EmbeddingService, cfg EmbeddingConfig) *EmbeddingGenerator {
	def := DefaultEmbeddingConfig()
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = def.Dimensions
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}

	g := &EmbeddingGenerator{svc: svc, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return g
}

// Dimensions returns the configured vector size.
func (g *EmbeddingGenerator) Dimensions() int {
	return g.cfg.Dimensions
}

// ModelName returns the underlying model name.
func (g *EmbeddingGenerator) ModelName() string {
	return g.svc.ModelName()
}

// Verify checks that the configured model is installed. Only a positive
// answer is remembered: a failed listing or a missing model is checked
// again on the next call, so a provider that comes back or a model pulled
// later is picked up without a restart. Services that cannot list models
// are assumed to have it.
func (g *EmbeddingGenerator) Verify(ctx context.Context) error {
	g.verifyMu.Lock()
	defer g.verifyMu.Unlock()
	if g.verified {
		return nil
	}

	lister, ok := g.svc.(driven.ModelLister)
	if !ok {
		g.verified = true
		return nil
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: list models: %w", domain.ErrEmbeddingUnavailable, err)
	}
	want := g.svc.ModelName()
	for _, m := range models {
		if m == want || m == want+":latest" {
			g.verified = true
			return nil
		}
	}
	return fmt.Errorf("%w: model %q is not installed", domain.ErrEmbeddingUnavailable, want)
}

// Zero returns a zero vector of the configured dimension.
func (g *EmbeddingGenerator) Zero() []float32 {
	return make([]float32, g.cfg.Dimensions)
}

// Embed returns the embedding for text. Blank text yields a zero vector
// without calling the provider. A wrong-sized vector fails immediately
// with ErrDimensionMismatch; other failures are retried with backoff.
func (g *EmbeddingGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return g.Zero(), nil
	}
	if err := g.Verify(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		vec, err := g.call(ctx, text)
		if err == nil {
			if len(vec) != g.cfg.Dimensions {
				return nil, &domain.DimensionError{Expected: g.cfg.Dimensions, Actual: len(vec)}
			}
			return vec, nil
		}
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, ctx.Err())
		}

		lastErr = err
		logger.Event("warn", "embedding.retry", "attempt", attempt, "max", g.cfg.MaxRetries, "error", logger.Mask(err.Error()))
		if attempt < g.cfg.MaxRetries {
			if err := sleep(ctx, g.cfg.Backoff.Delay(attempt)); err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", domain.ErrEmbeddingFailed, g.cfg.MaxRetries, lastErr)
}

func (g *EmbeddingGenerator) call(ctx context.Context, text string) ([]float32, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return g.svc.Embed(ctx, text)
}

// EmbedBatch embeds texts in sub-batches, each item independently. Items
// that fail are replaced by zero vectors so the result always has
// len(texts) entries. The returned error is non-nil only when ctx ends.
func (g *EmbeddingGenerator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var mu sync.Mutex
	var failed []int

	for start := 0; start < len(texts); start += g.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+g.cfg.BatchSize, len(texts))

		var eg errgroup.Group
		for i := start; i < end; i++ {
			eg.Go(func() error {
				vec, err := g.Embed(ctx, texts[i])
				if err != nil {
					vec = g.Zero()
					mu.Lock()
					failed = append(failed, i)
					mu.Unlock()
				}
				out[i] = vec
				return nil
			})
		}
		_ = eg.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		logger.Event("warn", "embedding.batch_partial",
			"total", len(texts), "failed", len(failed), "failed_indices", sortedInts(failed))
	}
	return out, nil
}

func sortedInts(v []int) string {
	s := slices.Clone(v)
	slices.Sort(s)
	parts := make([]string, len(s))
	for i, n := range s {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
