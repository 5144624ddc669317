package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Fallback answer texts, one per reason.
const (
	FallbackTextNoDocuments   = "Sorry, no relevant documents were found for your question."
	FallbackTextLowConfidence = "No confident answer could be found. Please refer to the search results below."
	FallbackTextNoSource      = "The generated answer could not be traced to the documents. Please check the search results below."
	FallbackTextError         = "An error occurred while searching. Please try again shortly."
)

// ModelFallback and ModelError are reported as the model for non-generated answers.
const (
	ModelFallback = "fallback"
	ModelError    = "error"
)

// groundingMarkers recognise answers that cite or derive from the supplied context.
var groundingMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[document\s*\d+\]`),
	regexp.MustCompile(`(?i)\bdocuments?\b`),
	regexp.MustCompile(`(?i)\bsources?\b`),
	regexp.MustCompile(`(?i)\bregulations?\b`),
	regexp.MustCompile(`(?i)\baccording to\b`),
	regexp.MustCompile(`(?i)\btherefore\b`),
	regexp.MustCompile(`(?i)\bbased on\b`),
}

// HasGroundingMarker reports whether answer contains a citation or source reference.
func HasGroundingMarker(answer string) bool {
	for _, p := range groundingMarkers {
		if p.MatchString(answer) {
			return true
		}
	}
	return false
}

// AnswerConfig configures the AnswerGenerator.
type AnswerConfig struct {
	// ConfidenceThreshold is the minimum mean relevance needed to call the LLM.
	ConfidenceThreshold float64

	// Timeout bounds each generation attempt.
	Timeout time.Duration

	// MaxRetries bounds attempts on timeout.
	MaxRetries int

	MaxTokens   int
	Temperature float64
	Backoff     Backoff
}

// DefaultAnswerConfig returns the generator defaults.
func DefaultAnswerConfig() AnswerConfig {
	return AnswerConfig{
		ConfidenceThreshold: 0.5,
		Timeout:             60 * time.Second,
		MaxRetries:          3,
		MaxTokens:           500,
		Temperature:         0.7,
		Backoff:             Backoff{Base: time.Second, Max: 10 * time.Second},
	}
}

// AnswerConfigFrom maps settings onto a generator config.
func AnswerConfigFrom(llm domain.LLMSettings, ans domain.AnswerSettings) AnswerConfig {
	cfg := DefaultAnswerConfig()
	cfg.ConfidenceThreshold = ans.ConfidenceThreshold
	if llm.Timeout > 0 {
		cfg.Timeout = llm.Timeout
	}
	if llm.MaxRetries > 0 {
		cfg.MaxRetries = llm.MaxRetries
	}
	if llm.MaxTokens > 0 {
		cfg.MaxTokens = llm.MaxTokens
	}
	cfg.Temperature = llm.Temperature
	return cfg
}

// Generation is the outcome of one answer attempt.
type Generation struct {
	Answer     string
	IsFallback bool
	Reason     domain.FallbackReason
	Model      string
	Elapsed    time.Duration
}

// AnswerGenerator produces grounded answers from retrieved passages.
type AnswerGenerator struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	cfg     AnswerConfig
}

// NewAnswerGenerator creates a generator. prompts may be nil.
func NewAnswerGenerator(llm driven.LLMService, prompts driven.PromptStore, cfg AnswerConfig) *AnswerGenerator {
	def := DefaultAnswerConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	return &AnswerGenerator{llm: llm, prompts: prompts, cfg: cfg}
}

// Generate answers query from results. No results, low mean relevance and
// answers without a grounding marker produce fallbacks. An error is returned
// only when the language model itself fails (ErrGenerationTimeout or
// ErrGenerationFailed).
func (g *AnswerGenerator) Generate(ctx context.Context, query string, results []domain.SearchResult) (Generation, error) {
	if len(results) == 0 {
		logger.Event("warn", "answer.fallback", "reason", domain.FallbackNoDocuments)
		return fallback(domain.FallbackNoDocuments), nil
	}

	mean := MeanRelevance(results)
	if mean < g.cfg.ConfidenceThreshold {
		logger.Event("warn", "answer.fallback", "reason", domain.FallbackLowConfidence,
			"mean_relevance", fmt.Sprintf("%.3f", mean))
		return fallback(domain.FallbackLowConfidence), nil
	}

	if g.llm == nil {
		return Generation{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, domain.ErrLLMUnavailable)
	}

	prompt := g.buildPrompt(query, results)
	start := time.Now()
	answer, err := g.generateWithRetry(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		return Generation{Elapsed: elapsed}, err
	}

	if !HasGroundingMarker(answer) {
		logger.Event("warn", "answer.fallback", "reason", domain.FallbackNoSource, "answer_chars", len(answer))
		gen := fallback(domain.FallbackNoSource)
		gen.Elapsed = elapsed
		return gen, nil
	}

	return Generation{
		Answer:  strings.TrimSpace(answer),
		Model:   g.llm.ModelName(),
		Elapsed: elapsed,
	}, nil
}

func fallback(reason domain.FallbackReason) Generation {
	text := FallbackTextError
	switch reason {
	case domain.FallbackNoDocuments:
		text = FallbackTextNoDocuments
	case domain.FallbackLowConfidence:
		text = FallbackTextLowConfidence
	case domain.FallbackNoSource:
		text = FallbackTextNoSource
	}
	return Generation{Answer: text, IsFallback: true, Reason: reason, Model: ModelFallback}
}

// generateWithRetry retries only on per-attempt timeouts.
func (g *AnswerGenerator) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	opts := driven.GenerateOptions{MaxTokens: g.cfg.MaxTokens, Temperature: g.cfg.Temperature}

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		answer, err := g.llm.Generate(attemptCtx, prompt, opts)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()

		switch {
		case err == nil:
			return answer, nil
		case timedOut:
			logger.Event("warn", "answer.timeout", "attempt", attempt, "max", g.cfg.MaxRetries,
				"timeout", g.cfg.Timeout.String())
			if attempt >= g.cfg.MaxRetries {
				return "", fmt.Errorf("%w after %d attempts", domain.ErrGenerationTimeout, attempt)
			}
			if err := sleep(ctx, g.cfg.Backoff.Delay(attempt)); err != nil {
				return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
			}
		default:
			return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}
	}
}

func (g *AnswerGenerator) buildPrompt(query string, results []domain.SearchResult) string {
	tpl := driven.DefaultAnswerPrompt
	if g.prompts != nil {
		if t, err := g.prompts.Load(driven.PromptAnswer); err == nil && strings.Count(t, "%s") == 2 {
			tpl = t
		} else if err != nil {
			logger.Warn("answer prompt unavailable, using built-in template: %v", err)
		}
	}
	return fmt.Sprintf(tpl, BuildContext(results), query)
}

// BuildContext renders one block per result joined by a separator line.
func BuildContext(results []domain.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "Unknown"
		}
		source := r.Source
		if source == "" {
			source = "Unknown"
		}
		page := "N/A"
		if r.PageNumber != nil {
			page = fmt.Sprint(*r.PageNumber)
		}
		blocks[i] = fmt.Sprintf("[Document %d] %s\nSource: %s (page %s)\nContent: %s\nRelevance: %.2f\n",
			i+1, title, source, page, r.Content, r.RelevanceScore)
	}
	return strings.Join(blocks, "\n---\n")
}

// MeanRelevance averages the relevance scores, zero for no results.
func MeanRelevance(results []domain.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.RelevanceScore
	}
	return sum / float64(len(results))
}
