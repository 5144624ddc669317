package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

// saveDocument commits a single document.
func saveDocument(t *testing.T, store *Store, doc *domain.SourceDocument) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveDocument(ctx, doc))
	require.NoError(t, tx.Commit())
}

func testDocument(id, source string, created time.Time) *domain.SourceDocument {
	return &domain.SourceDocument{
		ID:          id,
		Title:       "Leave Policy",
		Content:     "Employees receive 15 days of annual leave.",
		Type:        domain.FileTypePDF,
		Source:      source,
		AccessLevel: domain.AccessInternal,
		Department:  "HR",
		Metadata:    map[string]any{"total_pages": float64(3)},
		CreatedAt:   created,
	}
}

// ==================== Store Creation ====================

func TestNewStore_CreatesDatabaseAndMigrates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Join(dir, "metadata.db"))
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "metadata.db"), store.Path())

	v, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"010_late.up.sql":     {Data: []byte("SELECT 1;")},
		"002_second.up.sql":   {Data: []byte("SELECT 1;")},
		"001_initial.up.sql":  {Data: []byte("SELECT 1;")},
		"002_second.down.sql": {Data: []byte("SELECT 1;")},
		"notes.up.sql":        {Data: []byte("SELECT 1;")},
	}

	got, err := pendingMigrations(fsys, 1)
	require.NoError(t, err)
	assert.Equal(t, []migration{
		{version: 2, name: "002_second.up.sql"},
		{version: 10, name: "010_late.up.sql"},
	}, got)
}

func TestMigrate_FailedScriptIsNotRecorded(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.migrate(ctx, fstest.MapFS{
		"002_broken.up.sql": {Data: []byte("CREATE TABLE extra (id TEXT); THIS IS NOT SQL;")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_broken.up.sql")

	v, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	saveDocument(t, store, testDocument("doc-1", "/docs/a.pdf", time.Now()))
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	doc, err := store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Leave Policy", doc.Title)
}

// ==================== Metadata Store ====================

func TestDocuments_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	created := time.Date(2026, 3, 1, 9, 30, 0, 123, time.UTC)
	saveDocument(t, store, testDocument("doc-1", "/docs/hr/leave.pdf", created))

	doc, err := store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.FileTypePDF, doc.Type)
	assert.Equal(t, domain.AccessInternal, doc.AccessLevel)
	assert.Equal(t, "HR", doc.Department)
	assert.Equal(t, float64(3), doc.Metadata["total_pages"])
	assert.True(t, created.Equal(doc.CreatedAt))
}

func TestDocuments_GetMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocuments_RollbackDiscards(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveDocument(ctx, testDocument("doc-1", "/a.pdf", time.Now())))
	require.NoError(t, tx.Rollback())

	_, err = store.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The write lock was released.
	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
}

func TestDocuments_RollbackAfterCommitIsNoop(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveDocument(ctx, testDocument("doc-1", "/a.pdf", time.Now())))
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback())

	_, err = store.GetDocument(ctx, "doc-1")
	assert.NoError(t, err)
}

func TestDocuments_BeginHonoursContext(t *testing.T) {
	store := setupTestStore(t)

	held, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer held.Rollback()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = store.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDocuments_ConcurrentWriters(t *testing.T) {
	store := setupTestStore(t)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			id := "doc-" + string(rune('a'+i))
			tx, err := store.Begin(ctx)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, tx.SaveDocument(ctx, testDocument(id, "/docs/"+id+".txt", time.Now())))
			assert.NoError(t, tx.Commit())
		}(i)
	}
	wg.Wait()

	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 10)
}

func TestDocuments_ListNewestFirstAndFindBySource(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	saveDocument(t, store, testDocument("old", "/docs/a.pdf", base))
	saveDocument(t, store, testDocument("new", "/docs/a.pdf", base.Add(time.Hour)))
	saveDocument(t, store, testDocument("other", "/docs/b.pdf", base.Add(30*time.Minute)))

	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"new", "other", "old"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})

	bySource, err := store.FindBySource(context.Background(), "/docs/a.pdf")
	require.NoError(t, err)
	require.Len(t, bySource, 2)
	assert.Equal(t, "new", bySource[0].ID)
}

func TestDocuments_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	saveDocument(t, store, testDocument("doc-1", "/a.pdf", time.Now()))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	existed, err := tx.DeleteDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = tx.DeleteDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, existed)
	require.NoError(t, tx.Commit())

	_, err = store.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocuments_SaveRejectsInvalidInput(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	assert.ErrorIs(t, tx.SaveDocument(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, tx.SaveDocument(ctx, &domain.SourceDocument{}), domain.ErrInvalidInput)

	bad := testDocument("doc-x", "/x.pdf", time.Now())
	bad.AccessLevel = 7
	assert.Error(t, tx.SaveDocument(ctx, bad))
}

// ==================== History Store ====================

func TestHistory_SaveAndPage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"qry_000000000001", "qry_000000000002", "qry_000000000003"} {
		require.NoError(t, store.SaveQuery(ctx, id, "u-1", "query "+id, ""))
	}
	require.NoError(t, store.SaveQuery(ctx, "qry_0000000000ff", "u-2", "someone else", "s-1"))

	ans := &domain.GeneratedAnswer{
		QueryID:     "qry_000000000003",
		Answer:      "Based on the document, 15 days.",
		Sources:     []domain.SearchResult{{DocumentID: "doc-1"}, {DocumentID: "doc-2"}},
		Performance: domain.Performance{TotalMS: 812},
		Metadata:    domain.AnswerMetadata{ModelUsed: "llama3.2:1b"},
		Timestamp:   time.Now(),
	}
	require.NoError(t, store.SaveResponse(ctx, ans.QueryID, ans))

	page, err := store.UserHistory(ctx, "u-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.Equal(t, "qry_000000000003", first.QueryID)
	assert.Equal(t, "Based on the document, 15 days.", first.Answer)
	assert.Equal(t, 2, first.SourcesCount)
	require.NotNil(t, first.ResponseTimeMS)
	assert.Equal(t, int64(812), *first.ResponseTimeMS)

	assert.Equal(t, "qry_000000000002", page.Items[1].QueryID)
	assert.Nil(t, page.Items[1].ResponseTimeMS)

	page, err = store.UserHistory(ctx, "u-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "qry_000000000001", page.Items[0].QueryID)

	page, err = store.UserHistory(ctx, "nobody", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
}

func TestHistory_DuplicateQueryID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveQuery(ctx, "qry_000000000001", "", "q", ""))
	assert.Error(t, store.SaveQuery(ctx, "qry_000000000001", "", "q", ""))

	page, err := store.UserHistory(ctx, domain.AnonymousUserID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestFeedback(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveQuery(ctx, "qry_000000000001", "u-1", "q", ""))

	fb := domain.Feedback{
		ID:        "feedback_0a1b2c3d",
		QueryID:   "qry_000000000001",
		UserID:    "u-1",
		Rating:    4,
		Comment:   "helpful",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveFeedback(ctx, fb))

	got, err := store.FeedbackFor(ctx, "qry_000000000001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Rating)
	assert.Equal(t, "helpful", got[0].Comment)

	fb.ID = "feedback_ffffffff"
	fb.QueryID = "qry_missing"
	assert.ErrorIs(t, store.SaveFeedback(ctx, fb), domain.ErrNotFound)
}
