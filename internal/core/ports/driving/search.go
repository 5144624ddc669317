package driving

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// AnswerService answers questions over the permissioned corpus.
type AnswerService interface {
	// SearchAndAnswer validates the query, retrieves passages the user may see
	// and returns a grounded answer or a fallback. Only validation failures
	// are returned as errors. A nil user disables permission filtering.
	SearchAndAnswer(ctx context.Context, query string, limit int, user *domain.UserContext) (*domain.GeneratedAnswer, error)
}

// HistoryService exposes search history and feedback.
type HistoryService interface {
	// UserHistory returns a page of the user's past queries.
	UserHistory(ctx context.Context, userID string, page, pageSize int) (*domain.HistoryPage, error)

	// SubmitFeedback records a rating for a past answer and returns its ID.
	SubmitFeedback(ctx context.Context, fb domain.Feedback) (string, error)
}

// RetrievalService returns the passages a user may read without generating
// an answer.
type RetrievalService interface {
	// Retrieve validates the query and limit and returns permitted passages,
	// most relevant first.
	Retrieve(ctx context.Context, query string, limit int, user *domain.UserContext) ([]domain.SearchResult, error)
}
