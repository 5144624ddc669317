// Package openai generates answers with the OpenAI chat completions API or
// any server compatible with it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// Defaults.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = openai.GPT4oMini
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures the service. APIKey is required; BaseURL may point
// at Azure or a compatible gateway.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService sends each prompt as a single user message.
type LLMService struct {
	client *openai.Client
	model  string
}

// NewLLMService fails when cfg has no API key.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is not set", domain.ErrLLMUnavailable)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = DefaultLLMModel
	}
	return &LLMService{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

// Generate returns the first choice's content.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		Stop:        opts.StopWords,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *LLMService) ModelName() string { return s.model }
func (s *LLMService) Close() error      { return nil }

// Ping lists the models visible to the key and checks the configured one
// is among them. It spends no tokens.
func (s *LLMService) Ping(ctx context.Context) error {
	list, err := s.client.ListModels(ctx)
	if err != nil {
		return classify(err)
	}
	ids := make([]string, len(list.Models))
	for i, m := range list.Models {
		ids[i] = m.ID
	}
	if !slices.Contains(ids, s.model) {
		return fmt.Errorf("%w: openai model %q is not available to this key", domain.ErrLLMUnavailable, s.model)
	}
	return nil
}

// classify marks authentication and missing model responses as
// ErrLLMUnavailable. Everything else, rate limits included, is returned as
// is so the answer generator treats it as a transient failure.
func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("%w: openai: %w", domain.ErrLLMUnavailable, err)
	}
	return fmt.Errorf("openai: %w", err)
}
