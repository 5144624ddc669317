package services

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure SearchService implements the interface.
var (
	_ driving.AnswerService    = (*SearchService)(nil)
	_ driving.RetrievalService = (*SearchService)(nil)
)

// SearchService answers questions: validate, retrieve, generate, compose.
type SearchService struct {
	retriever *Retriever
	generator *AnswerGenerator
	history   driven.HistoryStore
}

// NewSearchService creates the search-and-answer facade. history may be nil.
func NewSearchService(retriever *Retriever, generator *AnswerGenerator, history driven.HistoryStore) *SearchService {
	return &SearchService{
		retriever: retriever,
		generator: generator,
		history:   history,
	}
}

// SearchAndAnswer validates the query and limit, then always returns an
// answer: retrieval and generation failures become error fallbacks. Only
// validation failures are returned as errors.
func (s *SearchService) SearchAndAnswer(
	ctx context.Context,
	query string,
	limit int,
	user *domain.UserContext,
) (*domain.GeneratedAnswer, error) {
	q, err := domain.ValidateQuery(query)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateLimit(limit); err != nil {
		return nil, err
	}

	timer := NewPerformanceTimer()
	queryID := NewQueryID()
	userID := domain.AnonymousUserID
	if user != nil && user.UserID != "" {
		userID = user.UserID
	}

	if s.history != nil {
		if err := s.history.SaveQuery(ctx, queryID, userID, q, ""); err != nil {
			logger.Event("warn", "history.save_query_failed", "query_id", queryID, "error", logger.Mask(err.Error()))
		}
	}

	answer := s.answer(ctx, queryID, q, limit, user, timer)

	if s.history != nil {
		if err := s.history.SaveResponse(ctx, queryID, &answer); err != nil {
			logger.Event("warn", "history.save_response_failed", "query_id", queryID, "error", logger.Mask(err.Error()))
		}
	}

	logger.Event("info", "search.done",
		"query_id", queryID,
		"query", truncate(q, 50),
		"results", answer.Metadata.ResultCount,
		"fallback", answer.Metadata.IsFallback,
		"reason", answer.Metadata.FallbackReason,
		"total_ms", answer.Performance.TotalMS)

	return &answer, nil
}

// Retrieve returns the passages the user may read, without generation or
// history. Unlike SearchAndAnswer, retrieval failures are returned.
func (s *SearchService) Retrieve(
	ctx context.Context,
	query string,
	limit int,
	user *domain.UserContext,
) ([]domain.SearchResult, error) {
	q, err := domain.ValidateQuery(query)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateLimit(limit); err != nil {
		return nil, err
	}
	results, _, err := s.retriever.Search(ctx, q, limit, user)
	return results, err
}

func (s *SearchService) answer(
	ctx context.Context,
	queryID, query string,
	limit int,
	user *domain.UserContext,
	timer *PerformanceTimer,
) domain.GeneratedAnswer {
	results, timings, err := s.retriever.Search(ctx, query, limit, user)
	timer.Record(StageEmbedding, timings.Embedding)
	timer.Record(StageSearch, timings.Search)
	if err != nil {
		return ErrorFallback(queryID, query, err, nil, timer)
	}

	gen, err := s.generator.Generate(ctx, query, results)
	timer.Record(StageGeneration, gen.Elapsed)
	if err != nil {
		return ErrorFallback(queryID, query, err, results, timer)
	}

	return Compose(ComposeInput{
		QueryID:    queryID,
		Query:      query,
		Generation: gen,
		Results:    results,
		Timer:      timer,
	})
}
