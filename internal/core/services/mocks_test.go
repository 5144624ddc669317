package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// --- Mock implementations ---

// noSleep replaces the backoff sleep for the duration of a test.
func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	var mu sync.Mutex
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &waits
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	mu        sync.Mutex
	dims      int
	model     string
	failFirst int
	failFor   map[string]bool
	embedErr  error
	returnLen int
	models    []string
	listErr   error
	calls     int
	listCalls int
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.failFirst > 0 {
		m.failFirst--
		return nil, errors.New("connection reset")
	}
	if m.failFor[text] {
		return nil, errors.New("provider rejected input")
	}
	n := m.dims
	if m.returnLen > 0 {
		n = m.returnLen
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = float32(len(text)%7+1) / 10
	}
	return vec, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int { return m.dims }

func (m *mockEmbeddingService) ModelName() string {
	if m.model == "" {
		return "mock-embed"
	}
	return m.model
}

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }

func (m *mockEmbeddingService) Close() error { return nil }

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// listingEmbeddingService adds model listing.
type listingEmbeddingService struct {
	*mockEmbeddingService
}

func (m listingEmbeddingService) ListModels(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return m.models, m.listErr
}

func (m listingEmbeddingService) setModels(models []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models, m.listErr = models, err
}

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	mu         sync.Mutex
	rows       []driven.VectorRow
	hits       []driven.VectorHit
	searchErr  error
	insertErr  error
	deleteErr  error
	lastFilter string
	lastLimit  int
	deleted    []string
	extraIDs   []string
}

func (m *mockVectorIndex) Insert(_ context.Context, rows []driven.VectorRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, predicate string, limit int, _ []string) ([]driven.VectorHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = predicate
	m.lastLimit = limit
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit < len(m.hits) {
		return m.hits[:limit], nil
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Delete(_ context.Context, predicate string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deleted = append(m.deleted, predicate)
	kept := m.rows[:0]
	n := 0
	for _, r := range m.rows {
		if DocumentIDFilter(r.DocumentID) == predicate {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n, nil
}

func (m *mockVectorIndex) DocumentIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	for _, r := range m.rows {
		seen[r.DocumentID] = true
	}
	for _, id := range m.extraIDs {
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockVectorIndex) Close() error { return nil }

func (m *mockVectorIndex) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// mockMetadataStore implements driven.MetadataStore for testing.
type mockMetadataStore struct {
	mu        sync.Mutex
	docs      map[string]domain.SourceDocument
	beginErr  error
	saveErr   error
	deleteErr error
	commitErr error
	getErr    error
	commits   int
	rollbacks int
}

func newMockMetadataStore() *mockMetadataStore {
	return &mockMetadataStore{docs: make(map[string]domain.SourceDocument)}
}

func (m *mockMetadataStore) Begin(_ context.Context) (driven.MetadataTx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return &mockTx{store: m}, nil
}

func (m *mockMetadataStore) GetDocument(_ context.Context, id string) (*domain.SourceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (m *mockMetadataStore) ListDocuments(_ context.Context) ([]domain.SourceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SourceDocument, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockMetadataStore) FindBySource(_ context.Context, source string) ([]domain.SourceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SourceDocument
	for _, d := range m.docs {
		if d.Source == source {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockMetadataStore) Close() error { return nil }

func (m *mockMetadataStore) docCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

type mockTx struct {
	store   *mockMetadataStore
	pending []domain.SourceDocument
	deletes []string
	done    bool
}

func (tx *mockTx) SaveDocument(_ context.Context, doc *domain.SourceDocument) error {
	if tx.store.saveErr != nil {
		return tx.store.saveErr
	}
	tx.pending = append(tx.pending, *doc)
	return nil
}

func (tx *mockTx) DeleteDocument(_ context.Context, id string) (bool, error) {
	if tx.store.deleteErr != nil {
		return false, tx.store.deleteErr
	}
	tx.store.mu.Lock()
	_, ok := tx.store.docs[id]
	tx.store.mu.Unlock()
	tx.deletes = append(tx.deletes, id)
	return ok, nil
}

func (tx *mockTx) Commit() error {
	if tx.store.commitErr != nil {
		return tx.store.commitErr
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for _, d := range tx.pending {
		tx.store.docs[d.ID] = d
	}
	for _, id := range tx.deletes {
		delete(tx.store.docs, id)
	}
	tx.store.commits++
	tx.done = true
	return nil
}

func (tx *mockTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.store.mu.Lock()
	tx.store.rollbacks++
	tx.store.mu.Unlock()
	tx.done = true
	return nil
}

// mockParser implements driven.Parser for testing.
type mockParser struct {
	docs map[string]*domain.ParsedDocument
	errs map[string]error
}

func (m *mockParser) SupportedExtensions() []string { return []string{".txt"} }

func (m *mockParser) Parse(_ context.Context, path string) (*domain.ParsedDocument, error) {
	if err, ok := m.errs[path]; ok {
		return nil, err
	}
	if d, ok := m.docs[path]; ok {
		return d, nil
	}
	return &domain.ParsedDocument{
		Path:            path,
		FileType:        domain.FileTypeTXT,
		Pages:           []domain.ParsedPage{{PageNumber: 1, Content: "content of " + path}},
		TotalPages:      1,
		TotalCharacters: len("content of " + path),
		Metadata:        map[string]any{"file_size_bytes": int64(100)},
	}, nil
}

// mockChunker splits on blank lines.
type mockChunker struct {
	err error
}

func (m *mockChunker) ChunkDocument(doc *domain.ParsedDocument, documentID string) ([]domain.TextChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	var chunks []domain.TextChunk
	page := doc.TotalPages
	for _, p := range doc.Pages {
		for _, part := range strings.Split(p.Content, "\n\n") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, domain.TextChunk{
				Content:       part,
				ChunkIndex:    len(chunks),
				DocumentID:    documentID,
				DocumentTitle: doc.Title(),
				PageNumber:    &page,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyContent
	}
	return chunks, nil
}

// mockLLM implements driven.LLMService for testing.
type mockLLM struct {
	mu       sync.Mutex
	answer   string
	err      error
	hangFor  int
	calls    int
	prompts  []string
	lastOpts driven.GenerateOptions
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.lastOpts = opts
	hang := m.hangFor > 0
	if hang {
		m.hangFor--
	}
	m.mu.Unlock()

	if hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockLLM) ModelName() string { return "mock-llm" }

func (m *mockLLM) Ping(_ context.Context) error { return nil }

func (m *mockLLM) Close() error { return nil }

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompt string
	err    error
}

func (m *mockPromptStore) Load(_ string) (string, error) { return m.prompt, m.err }

func (m *mockPromptStore) Reload() {}

// mockHistoryStore implements driven.HistoryStore for testing.
type mockHistoryStore struct {
	mu          sync.Mutex
	queries     map[string]string
	users       map[string]string
	responses   map[string]*domain.GeneratedAnswer
	feedback    []domain.Feedback
	saveErr     error
	responseErr error
	page        *domain.HistoryPage
	lastPage    [2]int
}

func newMockHistoryStore() *mockHistoryStore {
	return &mockHistoryStore{
		queries:   make(map[string]string),
		users:     make(map[string]string),
		responses: make(map[string]*domain.GeneratedAnswer),
	}
}

func (m *mockHistoryStore) SaveQuery(_ context.Context, queryID, userID, query, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.queries[queryID] = query
	m.users[queryID] = userID
	return nil
}

func (m *mockHistoryStore) SaveResponse(_ context.Context, queryID string, answer *domain.GeneratedAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.responseErr != nil {
		return m.responseErr
	}
	m.responses[queryID] = answer
	return nil
}

func (m *mockHistoryStore) UserHistory(_ context.Context, _ string, page, pageSize int) (*domain.HistoryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPage = [2]int{page, pageSize}
	if m.page != nil {
		return m.page, nil
	}
	return &domain.HistoryPage{Page: page, PageSize: pageSize}, nil
}

func (m *mockHistoryStore) SaveFeedback(_ context.Context, fb domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.feedback = append(m.feedback, fb)
	return nil
}

// hit builds a vector hit with the fields the retriever reads.
func hit(docID string, chunk int, similarity float64, content string) driven.VectorHit {
	return driven.VectorHit{
		Similarity: similarity,
		Fields: map[string]any{
			driven.FieldDocumentID: docID,
			driven.FieldChunkIndex: chunk,
			driven.FieldContent:    content,
			driven.FieldMetadata:   `{"document_title":"Leave Policy","document_source":"hr/leave.pdf","page_number":2}`,
		},
	}
}
