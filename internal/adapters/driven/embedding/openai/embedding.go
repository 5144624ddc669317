// Package openai embeds text with the OpenAI embeddings API or a
// compatible server.
package openai

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingService = (*EmbeddingService)(nil)
	_ driven.ModelLister      = (*EmbeddingService)(nil)
)

// Defaults.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultModel      = string(openai.SmallEmbedding3)
	DefaultTimeout    = 60 * time.Second
	DefaultDimensions = 1536
)

// nativeDimensions is the output size of the known models. Unknown models
// are assumed to produce DefaultDimensions.
var nativeDimensions = map[string]int{
	string(openai.SmallEmbedding3): 1536,
	string(openai.LargeEmbedding3): 3072,
	string(openai.AdaEmbeddingV2):  1536,
}

// Config configures the service. APIKey is required. Dimensions shortens
// text-embedding-3 vectors and is otherwise ignored by the API.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService wraps the go-openai client.
type EmbeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewEmbeddingService fails when cfg has no API key.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is not set", domain.ErrEmbeddingUnavailable)
	}

	model := cmp.Or(cfg.Model, DefaultModel)
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = nativeDimensions[model]
	}
	if dims <= 0 {
		dims = DefaultDimensions
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/")
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &EmbeddingService{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dims,
	}, nil
}

func (s *EmbeddingService) Dimensions() int   { return s.dimensions }
func (s *EmbeddingService) ModelName() string { return s.model }
func (s *EmbeddingService) Close() error      { return nil }

// Embed is EmbedBatch for one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends one request and places each returned vector by its
// index. A response that leaves any slot empty is an error.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequestStrings{Input: texts, Model: openai.EmbeddingModel(s.model)}
	if strings.HasPrefix(s.model, "text-embedding-3-") {
		req.Dimensions = s.dimensions
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classify("create embeddings", err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai: no embedding returned for input %d", i)
		}
	}
	return out, nil
}

// ListModels returns the model IDs visible to the key.
func (s *EmbeddingService) ListModels(ctx context.Context) ([]string, error) {
	list, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, classify("list models", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Ping checks the key by listing models.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.ListModels(ctx)
	return err
}

// classify marks rejected credentials as ErrEmbeddingUnavailable.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) &&
		(apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: openai %s: %w", domain.ErrEmbeddingUnavailable, op, err)
	}
	return fmt.Errorf("openai %s: %w", op, err)
}
