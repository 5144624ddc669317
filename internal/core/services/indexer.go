package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.IndexingService = (*Indexer)(nil)

// batchEmbedder is the part of EmbeddingGenerator the indexer needs.
type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ContentHasher fingerprints a file's bytes. The scanner uses the recorded
// hash to skip unchanged files.
type ContentHasher func(path string) (string, error)

// IndexerConfig bounds batch indexing.
type IndexerConfig struct {
	BatchSize     int
	MaxConcurrent int

	// MaxRetries bounds IndexWithRetry attempts.
	MaxRetries int
	Backoff    Backoff
}

// DefaultIndexerConfig returns the indexing defaults.
func DefaultIndexerConfig() IndexerConfig {
	return IndexerConfig{
		BatchSize:     5,
		MaxConcurrent: 5,
		MaxRetries:    3,
		Backoff:       Backoff{Base: 2 * time.Second, Max: time.Minute},
	}
}

// IndexerConfigFrom maps settings onto an indexer config.
func IndexerConfigFrom(s domain.IndexingSettings) IndexerConfig {
	cfg := DefaultIndexerConfig()
	if s.BatchSize > 0 {
		cfg.BatchSize = s.BatchSize
	}
	if s.MaxConcurrent > 0 {
		cfg.MaxConcurrent = s.MaxConcurrent
	}
	if s.MaxRetries > 0 {
		cfg.MaxRetries = s.MaxRetries
	}
	return cfg
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithContentHasher records a content hash in each document's metadata.
func WithContentHasher(h ContentHasher) IndexerOption {
	return func(ix *Indexer) {
		ix.hasher = h
	}
}

// Indexer runs the ingest pipeline: parse, chunk, uncommitted relational
// write, embed, vector insert, commit. Any failure before the commit rolls
// back the relational write.
type Indexer struct {
	parser   driven.Parser
	chunker  driven.Chunker
	embedder batchEmbedder
	index    driven.VectorIndex
	store    driven.MetadataStore
	hasher   ContentHasher
	cfg      IndexerConfig
	sem      *semaphore.Weighted
}

// NewIndexer creates an indexing orchestrator.
func NewIndexer(
	parser driven.Parser,
	chunker driven.Chunker,
	embedder batchEmbedder,
	index driven.VectorIndex,
	store driven.MetadataStore,
	cfg IndexerConfig,
	opts ...IndexerOption,
) *Indexer {
	def := DefaultIndexerConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	ix := &Indexer{
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		store:    store,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexDocument indexes one file. Failures are reported in the result.
func (ix *Indexer) IndexDocument(ctx context.Context, path string, opts domain.IndexOptions) domain.IndexingResult {
	res, _ := ix.run(ctx, path, opts)
	return res
}

// IndexWithRetry retries IndexDocument with exponential backoff. Failures
// that another attempt cannot fix, such as an unsupported or malicious
// file, are not retried.
func (ix *Indexer) IndexWithRetry(ctx context.Context, path string, opts domain.IndexOptions) domain.IndexingResult {
	var res domain.IndexingResult
	for attempt := 1; attempt <= ix.cfg.MaxRetries; attempt++ {
		var err error
		res, err = ix.run(ctx, path, opts)
		if err == nil || permanent(err) {
			return res
		}
		logger.Event("warn", "index.retry", "attempt", attempt, "max", ix.cfg.MaxRetries, "error", res.Error)
		if attempt < ix.cfg.MaxRetries {
			if sleep(ctx, ix.cfg.Backoff.Delay(attempt)) != nil {
				return res
			}
		}
	}
	return res
}

func permanent(err error) bool {
	for _, target := range []error{
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrUnsupportedType,
		domain.ErrSizeLimitExceeded,
		domain.ErrCorrupted,
		domain.ErrEncrypted,
		domain.ErrMalicious,
		domain.ErrEmptyContent,
		domain.ErrDimensionMismatch,
		context.Canceled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IndexBatch indexes paths in sub-batches with at most MaxConcurrent files
// in the pipeline. It returns one result per path, in input order.
func (ix *Indexer) IndexBatch(ctx context.Context, paths []string, opts domain.IndexOptions) []domain.IndexingResult {
	results := make([]domain.IndexingResult, len(paths))
	start := time.Now()

	for lo := 0; lo < len(paths); lo += ix.cfg.BatchSize {
		hi := min(lo+ix.cfg.BatchSize, len(paths))

		var wg sync.WaitGroup
		for i := lo; i < hi; i++ {
			if err := ix.sem.Acquire(ctx, 1); err != nil {
				results[i] = domain.IndexingResult{FilePath: paths[i], Error: err.Error()}
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer ix.sem.Release(1)
				results[i] = ix.IndexDocument(ctx, paths[i], opts)
			}()
		}
		wg.Wait()
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	logger.Event("info", "index.batch_done",
		"total", len(paths), "succeeded", succeeded, "failed", len(paths)-succeeded,
		"elapsed_ms", time.Since(start).Milliseconds())
	return results
}

func (ix *Indexer) run(ctx context.Context, path string, opts domain.IndexOptions) (res domain.IndexingResult, err error) {
	start := time.Now()
	res.FilePath = path
	opts = opts.Normalise()

	defer func() {
		res.ElapsedMS = time.Since(start).Milliseconds()
		if err != nil {
			res.Success = false
			res.DocumentID = ""
			res.Error = logger.Mask(err.Error())
			logger.Event("error", "index.failed", "path", logger.Mask(path), "error", res.Error,
				"elapsed_ms", res.ElapsedMS)
		}
	}()

	if err := validateIndexOptions(opts); err != nil {
		return res, err
	}

	parsed, err := ix.parser.Parse(ctx, path)
	if err != nil {
		return res, fmt.Errorf("parse: %w", err)
	}

	chunks, err := ix.chunker.ChunkDocument(parsed, path)
	if err != nil {
		return res, fmt.Errorf("chunk: %w", err)
	}
	res.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return res, fmt.Errorf("chunk: %w", domain.ErrEmptyContent)
	}

	doc := ix.sourceDocument(path, parsed, opts, len(chunks))
	res.DocumentID = doc.ID

	tx, err := ix.store.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: begin: %w", domain.ErrPersistenceFailed, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Warn("rollback for %s failed: %v", doc.ID, rbErr)
			}
		}
	}()

	if err := tx.SaveDocument(ctx, doc); err != nil {
		return res, fmt.Errorf("%w: save document: %w", domain.ErrPersistenceFailed, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return res, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
	}

	rows := make([]driven.VectorRow, len(chunks))
	for i, c := range chunks {
		rows[i] = vectorRow(doc, c, vectors[i], len(chunks))
	}
	if err := ix.index.Insert(ctx, rows); err != nil {
		return res, fmt.Errorf("%w: insert vectors: %w", domain.ErrPersistenceFailed, err)
	}

	if err := tx.Commit(); err != nil {
		// Vectors for doc.ID are now orphaned until the next reconcile sweep.
		return res, fmt.Errorf("%w: commit: %w", domain.ErrPersistenceFailed, err)
	}
	committed = true

	res.Success = true
	res.IndexedChunks = len(rows)
	logger.Event("info", "index.done", "document_id", doc.ID, "chunks", len(rows),
		"access_level", int(opts.AccessLevel), "elapsed_ms", time.Since(start).Milliseconds())
	return res, nil
}

func validateIndexOptions(opts domain.IndexOptions) error {
	if !opts.AccessLevel.Valid() {
		return fmt.Errorf("%w: access level %d out of range", domain.ErrValidation, opts.AccessLevel)
	}
	if opts.AccessLevel > domain.AccessPublic && strings.TrimSpace(opts.Department) == "" {
		return fmt.Errorf("%w: %s documents need a department", domain.ErrValidation, opts.AccessLevel)
	}
	return nil
}

func (ix *Indexer) sourceDocument(
	path string,
	parsed *domain.ParsedDocument,
	opts domain.IndexOptions,
	chunkCount int,
) *domain.SourceDocument {
	title := opts.Title
	if title == "" {
		title = parsed.Title()
	}
	source := opts.Source
	if source == "" {
		source = path
	}

	pages := make([]string, 0, len(parsed.Pages))
	for _, p := range parsed.Pages {
		if strings.TrimSpace(p.Content) != "" {
			pages = append(pages, p.Content)
		}
	}

	meta := map[string]any{
		"page_count":  parsed.TotalPages,
		"chunk_count": chunkCount,
		"indexed_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if size, ok := parsed.Metadata["file_size_bytes"]; ok {
		meta["file_size_bytes"] = size
	}
	if ix.hasher != nil {
		if h, err := ix.hasher(path); err == nil {
			meta["content_hash"] = h
		} else {
			logger.Debug("content hash for %s: %v", logger.Mask(path), err)
		}
	}

	dept := opts.Department
	if opts.AccessLevel == domain.AccessPublic {
		dept = ""
	}

	return &domain.SourceDocument{
		ID:          uuid.NewString(),
		Title:       title,
		Content:     strings.Join(pages, "\n\n"),
		Type:        parsed.FileType,
		Source:      source,
		AccessLevel: opts.AccessLevel,
		Department:  dept,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}
}

func vectorRow(doc *domain.SourceDocument, c domain.TextChunk, vec []float32, total int) driven.VectorRow {
	meta := map[string]any{
		"document_title":  doc.Title,
		"document_source": doc.Source,
		"chunk_length":    len([]rune(c.Content)),
		"total_chunks":    total,
	}
	if c.PageNumber != nil {
		meta["page_number"] = *c.PageNumber
	}
	return driven.VectorRow{
		DocumentID:  doc.ID,
		Content:     c.Content,
		Embedding:   vec,
		ChunkIndex:  c.ChunkIndex,
		AccessLevel: int(doc.AccessLevel),
		Department:  doc.Department,
		Metadata:    meta,
	}
}

// Delete removes a document's vectors, then its metadata row. A missing
// row is not an error, so repeated deletes succeed. Vector deletion is not
// undone when the relational delete fails.
func (ix *Indexer) Delete(ctx context.Context, documentID string) bool {
	removed, err := ix.index.Delete(ctx, DocumentIDFilter(documentID))
	if err != nil {
		logger.Event("error", "delete.vectors_failed", "document_id", documentID, "error", logger.Mask(err.Error()))
		return false
	}

	tx, err := ix.store.Begin(ctx)
	if err != nil {
		logger.Event("error", "delete.begin_failed", "document_id", documentID, "error", logger.Mask(err.Error()))
		return false
	}
	found, err := tx.DeleteDocument(ctx, documentID)
	if err != nil {
		_ = tx.Rollback()
		logger.Event("error", "delete.row_failed", "document_id", documentID, "error", logger.Mask(err.Error()))
		return false
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		logger.Event("error", "delete.commit_failed", "document_id", documentID, "error", logger.Mask(err.Error()))
		return false
	}

	if !found {
		logger.Event("warn", "delete.row_missing", "document_id", documentID, "vectors_removed", removed)
	} else {
		logger.Event("info", "delete.done", "document_id", documentID, "vectors_removed", removed)
	}
	return true
}

// DeleteBySource deletes every document recorded for source and reports how
// many were removed.
func (ix *Indexer) DeleteBySource(ctx context.Context, source string) (int, error) {
	docs, err := ix.store.FindBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("find by source: %w", err)
	}
	n := 0
	for _, d := range docs {
		if ix.Delete(ctx, d.ID) {
			n++
		}
	}
	return n, nil
}

// Reconcile removes vectors whose document has no committed metadata row,
// the residue of a crash between vector insert and commit. It must not run
// while indexing is in progress, since uncommitted documents look orphaned.
func (ix *Indexer) Reconcile(ctx context.Context) ([]string, error) {
	ids, err := ix.index.DocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list vector documents: %w", domain.ErrPersistenceFailed, err)
	}

	var orphans []string
	for _, id := range ids {
		_, err := ix.store.GetDocument(ctx, id)
		switch {
		case err == nil:
			continue
		case errors.Is(err, domain.ErrNotFound):
			if _, err := ix.index.Delete(ctx, DocumentIDFilter(id)); err != nil {
				return orphans, fmt.Errorf("%w: delete orphan %s: %w", domain.ErrPersistenceFailed, id, err)
			}
			orphans = append(orphans, id)
		default:
			return orphans, fmt.Errorf("%w: lookup %s: %w", domain.ErrPersistenceFailed, id, err)
		}
	}

	logger.Event("info", "reconcile.done", "vector_documents", len(ids), "orphans_removed", len(orphans))
	return orphans, nil
}
