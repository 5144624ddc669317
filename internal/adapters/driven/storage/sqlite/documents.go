package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var (
	_ driven.MetadataStore = (*Store)(nil)
	_ driven.MetadataTx    = (*tx)(nil)
)

const documentColumns = `id, title, content, type, source, access_level, department, metadata, created_at`

// Begin opens a write transaction. It blocks until any other writer has
// finished or ctx is done.
func (s *Store) Begin(ctx context.Context) (driven.MetadataTx, error) {
	if err := s.writes.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for write lock: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.writes.Release(1)
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &tx{tx: sqlTx, release: func() { s.writes.Release(1) }}, nil
}

// GetDocument retrieves a committed document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM source_documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, notFound(err, "document "+id)
	}
	return doc, nil
}

// ListDocuments returns all committed documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.SourceDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM source_documents ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	return scanDocuments(rows)
}

// FindBySource returns the documents recorded for an origin path.
func (s *Store) FindBySource(ctx context.Context, source string) ([]domain.SourceDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM source_documents WHERE source = ? ORDER BY created_at DESC`, source)
	if err != nil {
		return nil, fmt.Errorf("querying documents by source: %w", err)
	}
	return scanDocuments(rows)
}

// tx is an open write. The semaphore slot is released exactly once.
type tx struct {
	tx      *sql.Tx
	release func()
	once    sync.Once
	done    bool
}

// SaveDocument inserts the document row.
func (t *tx) SaveDocument(ctx context.Context, doc *domain.SourceDocument) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO source_documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Title, doc.Content, string(doc.Type), doc.Source,
		int(doc.AccessLevel), doc.Department, string(metadataJSON), formatTime(doc.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// DeleteDocument removes a row and reports whether it existed.
func (t *tx) DeleteDocument(ctx context.Context, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM source_documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting document: %w", err)
	}
	return n > 0, nil
}

// Commit makes the writes durable.
func (t *tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	defer t.once.Do(t.release)
	return t.tx.Commit()
}

// Rollback discards the writes. It is a no-op after Commit.
func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.once.Do(t.release)
	return t.tx.Rollback()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.SourceDocument, error) {
	var (
		doc          domain.SourceDocument
		fileType     string
		level        int
		metadataJSON string
		createdAt    string
	)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &fileType, &doc.Source,
		&level, &doc.Department, &metadataJSON, &createdAt); err != nil {
		return nil, err
	}

	doc.Type = domain.FileType(fileType)
	doc.AccessLevel = domain.AccessLevel(level)
	doc.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata for %s: %w", doc.ID, err)
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]domain.SourceDocument, error) {
	defer rows.Close()

	var docs []domain.SourceDocument //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}
