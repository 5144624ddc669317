package mcp

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer    *domain.GeneratedAnswer
	err       error
	lastQuery string
	lastLimit int
	lastUser  *domain.UserContext
}

func (m *mockAnswerService) SearchAndAnswer(
	_ context.Context,
	query string,
	limit int,
	user *domain.UserContext,
) (*domain.GeneratedAnswer, error) {
	m.lastQuery, m.lastLimit, m.lastUser = query, limit, user
	return m.answer, m.err
}

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results  []domain.SearchResult
	err      error
	lastUser *domain.UserContext
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	_ string,
	_ int,
	user *domain.UserContext,
) ([]domain.SearchResult, error) {
	m.lastUser = user
	return m.results, m.err
}

// mockIndexingService is a mock implementation of driving.IndexingService.
type mockIndexingService struct {
	result   domain.IndexingResult
	lastPath string
	lastOpts domain.IndexOptions
}

func (m *mockIndexingService) IndexDocument(_ context.Context, path string, opts domain.IndexOptions) domain.IndexingResult {
	m.lastPath, m.lastOpts = path, opts
	return m.result
}

func (m *mockIndexingService) IndexBatch(ctx context.Context, paths []string, opts domain.IndexOptions) []domain.IndexingResult {
	out := make([]domain.IndexingResult, len(paths))
	for i, p := range paths {
		out[i] = m.IndexDocument(ctx, p, opts)
	}
	return out
}

func (m *mockIndexingService) Delete(_ context.Context, _ string) bool {
	return true
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.SourceDocument
	document  *domain.SourceDocument
	err       error
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.SourceDocument, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.SourceDocument, error) {
	return m.document, m.err
}

// mockHistoryService is a mock implementation of driving.HistoryService.
type mockHistoryService struct {
	feedback domain.Feedback
	err      error
}

func (m *mockHistoryService) UserHistory(_ context.Context, _ string, _, _ int) (*domain.HistoryPage, error) {
	return &domain.HistoryPage{}, m.err
}

func (m *mockHistoryService) SubmitFeedback(_ context.Context, fb domain.Feedback) (string, error) {
	m.feedback = fb
	if m.err != nil {
		return "", m.err
	}
	return "feedback_0123abcd", nil
}
