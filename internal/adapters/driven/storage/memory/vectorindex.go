package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is a brute-force cosine similarity index.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	rows       map[string]storedRow
}

type storedRow struct {
	driven.VectorRow
	norm     float64
	metadata string
}

func (r storedRow) number(field string) (float64, bool) {
	switch field {
	case driven.FieldAccessLevel:
		return float64(r.AccessLevel), true
	case driven.FieldChunkIndex:
		return float64(r.ChunkIndex), true
	}
	return 0, false
}

func (r storedRow) tag(field string) (string, bool) {
	switch field {
	case driven.FieldDepartment:
		return r.Department, true
	case driven.FieldDocumentID:
		return r.DocumentID, true
	}
	return "", false
}

// NewVectorIndex creates an index for vectors of the given size.
// Zero dimensions accepts any size fixed by the first insert.
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		dimensions: dimensions,
		rows:       make(map[string]storedRow),
	}
}

func rowKey(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%d", documentID, chunkIndex)
}

// Insert writes rows, replacing any row with the same document and chunk index.
// No row is written if any row is invalid.
func (x *VectorIndex) Insert(_ context.Context, rows []driven.VectorRow) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	dims := x.dimensions
	prepared := make([]storedRow, 0, len(rows))
	for _, r := range rows {
		if dims == 0 {
			dims = len(r.Embedding)
		}
		if len(r.Embedding) != dims {
			return &domain.DimensionError{Expected: dims, Actual: len(r.Embedding)}
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		r.Embedding = slices.Clone(r.Embedding)
		prepared = append(prepared, storedRow{VectorRow: r, norm: norm(r.Embedding), metadata: string(meta)})
	}

	x.dimensions = dims
	for _, r := range prepared {
		x.rows[rowKey(r.DocumentID, r.ChunkIndex)] = r
	}
	return nil
}

// Search returns up to limit rows matching predicate, most similar first.
func (x *VectorIndex) Search(
	ctx context.Context,
	vector []float32,
	predicate string,
	limit int,
	fields []string,
) ([]driven.VectorHit, error) {
	pred, err := compilePredicate(predicate)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dimensions != 0 && len(vector) != x.dimensions {
		return nil, &domain.DimensionError{Expected: x.dimensions, Actual: len(vector)}
	}
	qnorm := norm(vector)

	type scored struct {
		row storedRow
		sim float64
	}
	var candidates []scored
	for _, r := range x.rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !pred.match(r) {
			continue
		}
		candidates = append(candidates, scored{row: r, sim: cosine(vector, r.Embedding, qnorm, r.norm)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return rowKey(candidates[i].row.DocumentID, candidates[i].row.ChunkIndex) <
			rowKey(candidates[j].row.DocumentID, candidates[j].row.ChunkIndex)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hits := make([]driven.VectorHit, len(candidates))
	for i, c := range candidates {
		hits[i] = driven.VectorHit{Similarity: c.sim, Fields: c.row.fields(fields)}
	}
	return hits, nil
}

// fields renders the requested attributes the way a Redis reply would,
// with metadata as a JSON string. Empty selects every attribute.
func (r storedRow) fields(selected []string) map[string]any {
	all := map[string]any{
		driven.FieldDocumentID:  r.DocumentID,
		driven.FieldContent:     r.Content,
		driven.FieldChunkIndex:  r.ChunkIndex,
		driven.FieldAccessLevel: r.AccessLevel,
		driven.FieldDepartment:  r.Department,
		driven.FieldMetadata:    r.metadata,
	}
	if len(selected) == 0 {
		return all
	}
	out := make(map[string]any, len(selected))
	for _, f := range selected {
		if v, ok := all[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Delete removes every row matching predicate.
func (x *VectorIndex) Delete(_ context.Context, predicate string) (int, error) {
	pred, err := compilePredicate(predicate)
	if err != nil {
		return 0, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	removed := 0
	for k, r := range x.rows {
		if pred.match(r) {
			delete(x.rows, k)
			removed++
		}
	}
	return removed, nil
}

// DocumentIDs returns the distinct document ids present, sorted.
func (x *VectorIndex) DocumentIDs(_ context.Context) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, r := range x.rows {
		seen[r.DocumentID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Len returns the number of stored rows.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.rows)
}

// Close releases resources.
func (x *VectorIndex) Close() error {
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector is all zeros.
func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
