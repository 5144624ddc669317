package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// mockIndexer is a mock implementation of Indexer.
type mockIndexer struct {
	results   map[string]domain.IndexingResult
	batches   [][]string
	retried   []string
	deleted   []string
	sources   []string
	lastOpts  domain.IndexOptions
	orphans   []string
	missing   bool
	reconcile int
}

func (m *mockIndexer) result(path string) domain.IndexingResult {
	if r, ok := m.results[path]; ok {
		return r
	}
	return domain.IndexingResult{Success: true, DocumentID: "doc-" + filepath.Base(path), FilePath: path, TotalChunks: 2, IndexedChunks: 2}
}

func (m *mockIndexer) IndexDocument(_ context.Context, path string, opts domain.IndexOptions) domain.IndexingResult {
	m.lastOpts = opts
	return m.result(path)
}

func (m *mockIndexer) IndexBatch(_ context.Context, paths []string, opts domain.IndexOptions) []domain.IndexingResult {
	m.batches = append(m.batches, paths)
	m.lastOpts = opts
	out := make([]domain.IndexingResult, len(paths))
	for i, p := range paths {
		out[i] = m.result(p)
	}
	return out
}

func (m *mockIndexer) IndexWithRetry(_ context.Context, path string, opts domain.IndexOptions) domain.IndexingResult {
	m.retried = append(m.retried, path)
	m.lastOpts = opts
	return m.result(path)
}

func (m *mockIndexer) Delete(_ context.Context, documentID string) bool {
	m.deleted = append(m.deleted, documentID)
	return !m.missing
}

func (m *mockIndexer) DeleteBySource(_ context.Context, source string) (int, error) {
	m.sources = append(m.sources, source)
	return 1, nil
}

func (m *mockIndexer) Reconcile(_ context.Context) ([]string, error) {
	m.reconcile++
	return m.orphans, nil
}

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

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.SourceDocument
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.SourceDocument, error) {
	return m.documents, nil
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.SourceDocument, error) {
	for i := range m.documents {
		if m.documents[i].ID == id {
			return &m.documents[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// mockHistoryService is a mock implementation of driving.HistoryService.
type mockHistoryService struct {
	page     *domain.HistoryPage
	lastUser string
	lastPage int
	lastSize int
	feedback []domain.Feedback
}

func (m *mockHistoryService) UserHistory(_ context.Context, userID string, page, pageSize int) (*domain.HistoryPage, error) {
	m.lastUser, m.lastPage, m.lastSize = userID, page, pageSize
	if m.page == nil {
		return &domain.HistoryPage{Page: page, PageSize: pageSize}, nil
	}
	return m.page, nil
}

func (m *mockHistoryService) SubmitFeedback(_ context.Context, fb domain.Feedback) (string, error) {
	if err := fb.Validate(); err != nil {
		return "", err
	}
	m.feedback = append(m.feedback, fb)
	return "feedback_0000abcd", nil
}

// mockLookup is a mock implementation of filesystem.SourceLookup.
type mockLookup struct {
	docs map[string][]domain.SourceDocument
}

func (m *mockLookup) FindBySource(_ context.Context, source string) ([]domain.SourceDocument, error) {
	return m.docs[source], nil
}

type testEnv struct {
	indexer   *mockIndexer
	answer    *mockAnswerService
	retrieval *mockRetrievalService
	documents *mockDocumentService
	history   *mockHistoryService
	lookup    *mockLookup
	health    []HealthCheck

	opts   Options
	built  int
	closed int
}

// setupTestServices replaces the bootstrap with mocks and restores global
// command state when the test ends.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		indexer:   &mockIndexer{},
		answer:    &mockAnswerService{},
		retrieval: &mockRetrievalService{},
		documents: &mockDocumentService{},
		history:   &mockHistoryService{},
		lookup:    &mockLookup{},
	}

	original := newServices
	newServices = func(_ context.Context, opts Options) (*Services, error) {
		env.opts = opts
		env.built++
		s := &Services{
			Settings:  domain.DefaultSettings(),
			Indexing:  env.indexer,
			Answer:    env.answer,
			Retrieval: env.retrieval,
			Documents: env.documents,
			History:   env.history,
			Lookup:    env.lookup,
			Supports: func(path string) bool {
				_, ok := domain.FileTypeFromPath(path)
				return ok
			},
			Health: env.health,
		}
		s.onClose(func() error {
			env.closed++
			return nil
		})
		return s, nil
	}

	t.Cleanup(func() {
		newServices = original
		svc = nil
		resetFlags(rootCmd)
	})
	resetFlags(rootCmd)
	return env
}

func failingBootstrap(t *testing.T) {
	t.Helper()
	original := newServices
	newServices = func(context.Context, Options) (*Services, error) {
		return nil, errors.New("bootstrap failed")
	}
	t.Cleanup(func() { newServices = original })
}

// resetFlags restores every flag to its default so state from one
// Execute does not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args from default flag values and
// returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
