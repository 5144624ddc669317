package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// ErrTxDone is returned when a finished transaction is committed again.
var ErrTxDone = errors.New("transaction already finished")

// MetadataStore is an in-memory implementation of driven.MetadataStore.
// Transactions buffer their writes and apply them on Commit.
type MetadataStore struct {
	mu     sync.RWMutex
	docs   map[string]domain.SourceDocument
	seq    map[string]int
	next   int
	writes *semaphore.Weighted
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		docs:   make(map[string]domain.SourceDocument),
		seq:    make(map[string]int),
		writes: semaphore.NewWeighted(1),
	}
}

// Begin opens a write transaction, waiting for any other writer.
func (s *MetadataStore) Begin(ctx context.Context) (driven.MetadataTx, error) {
	if err := s.writes.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for write lock: %w", err)
	}
	return &metadataTx{store: s}, nil
}

// GetDocument retrieves a committed document by ID.
func (s *MetadataStore) GetDocument(_ context.Context, id string) (*domain.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return cloneDocument(doc), nil
}

// ListDocuments returns all committed documents, newest first.
func (s *MetadataStore) ListDocuments(_ context.Context) ([]domain.SourceDocument, error) {
	return s.filter(func(domain.SourceDocument) bool { return true }), nil
}

// FindBySource returns the documents recorded for an origin path.
func (s *MetadataStore) FindBySource(_ context.Context, source string) ([]domain.SourceDocument, error) {
	return s.filter(func(d domain.SourceDocument) bool { return d.Source == source }), nil
}

// Close releases resources.
func (s *MetadataStore) Close() error {
	return nil
}

func (s *MetadataStore) filter(keep func(domain.SourceDocument) bool) []domain.SourceDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SourceDocument, 0, len(s.docs))
	for _, d := range s.docs {
		if keep(d) {
			out = append(out, *cloneDocument(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out
}

type txOp struct {
	save   *domain.SourceDocument
	delete string
}

type metadataTx struct {
	store *MetadataStore
	ops   []txOp
	done  bool
}

// SaveDocument buffers an insert. Duplicate IDs fail immediately.
func (t *metadataTx) SaveDocument(_ context.Context, doc *domain.SourceDocument) error {
	if t.done {
		return ErrTxDone
	}
	if doc == nil || doc.ID == "" || !doc.AccessLevel.Valid() {
		return domain.ErrInvalidInput
	}
	if _, exists := t.visible(doc.ID); exists {
		return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidInput, doc.ID)
	}
	t.ops = append(t.ops, txOp{save: cloneDocument(*doc)})
	return nil
}

// DeleteDocument buffers a delete and reports whether the row is visible
// to this transaction.
func (t *metadataTx) DeleteDocument(_ context.Context, id string) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	if _, exists := t.visible(id); !exists {
		return false, nil
	}
	t.ops = append(t.ops, txOp{delete: id})
	return true, nil
}

// visible replays the buffered ops over the committed state for id.
func (t *metadataTx) visible(id string) (domain.SourceDocument, bool) {
	t.store.mu.RLock()
	doc, ok := t.store.docs[id]
	t.store.mu.RUnlock()

	for _, op := range t.ops {
		switch {
		case op.save != nil && op.save.ID == id:
			doc, ok = *op.save, true
		case op.delete == id:
			ok = false
		}
	}
	return doc, ok
}

func (t *metadataTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.store.writes.Release(1)

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range t.ops {
		if op.save != nil {
			s.next++
			s.docs[op.save.ID] = *op.save
			s.seq[op.save.ID] = s.next
			continue
		}
		delete(s.docs, op.delete)
		delete(s.seq, op.delete)
	}
	return nil
}

func (t *metadataTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.ops = nil
	t.store.writes.Release(1)
	return nil
}

func cloneDocument(d domain.SourceDocument) *domain.SourceDocument {
	d.Metadata = maps.Clone(d.Metadata)
	return &d
}
