package services

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/logger"
)

// ComposeInput carries everything the composer merges into an answer.
type ComposeInput struct {
	// QueryID is generated when empty.
	QueryID    string
	Query      string
	Generation Generation
	Results    []domain.SearchResult
	Timer      *PerformanceTimer
}

// Stage names recorded by the PerformanceTimer.
const (
	StageEmbedding  = "embedding"
	StageSearch     = "search"
	StageGeneration = "generation"
)

// Compose assembles the caller-facing answer. It performs no I/O.
func Compose(in ComposeInput) domain.GeneratedAnswer {
	id := in.QueryID
	if id == "" {
		id = NewQueryID()
	}

	sources := make([]domain.SearchResult, len(in.Results))
	copy(sources, in.Results)

	var perf domain.Performance
	if in.Timer != nil {
		perf = domain.Performance{
			EmbeddingMS:  in.Timer.Get(StageEmbedding),
			SearchMS:     in.Timer.Get(StageSearch),
			GenerationMS: in.Timer.Get(StageGeneration),
			TotalMS:      in.Timer.Total(),
		}
	}

	model := in.Generation.Model
	if model == "" {
		model = ModelFallback
	}

	return domain.GeneratedAnswer{
		QueryID:     id,
		Query:       in.Query,
		Answer:      in.Generation.Answer,
		Sources:     sources,
		Performance: perf,
		Metadata: domain.AnswerMetadata{
			IsFallback:     in.Generation.IsFallback,
			FallbackReason: in.Generation.Reason,
			ModelUsed:      model,
			ResultCount:    len(in.Results),
		},
		Timestamp: time.Now().UTC(),
	}
}

// ErrorFallback builds the answer returned when retrieval or generation
// fails. Sources are kept so the caller still sees what was found.
func ErrorFallback(queryID, query string, err error, results []domain.SearchResult, timer *PerformanceTimer) domain.GeneratedAnswer {
	ans := Compose(ComposeInput{
		QueryID: queryID,
		Query:   query,
		Generation: Generation{
			Answer:     FallbackTextError,
			IsFallback: true,
			Reason:     domain.ErrorFallbackReason(logger.Mask(err.Error())),
			Model:      ModelError,
		},
		Results: results,
		Timer:   timer,
	})
	return ans
}

// NewQueryID returns "qry_" followed by 12 hex characters.
func NewQueryID() string {
	id := uuid.New()
	return "qry_" + hex.EncodeToString(id[:6])
}

// SafeError logs err with a fresh correlation ID and returns a generic
// message carrying only that ID.
func SafeError(err error) *domain.PublicError {
	ref := uuid.NewString()
	logger.Event("error", "request.failed", "correlation_id", ref, "error", logger.Mask(err.Error()))
	return &domain.PublicError{
		Message:       "An internal error occurred. Please contact support with the reference ID.",
		CorrelationID: ref,
	}
}

// truncate shortens s to n runes for logging.
func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n])) + "..."
}
