// Package redis provides a VectorIndex backed by Redis with RediSearch.
//
// Chunks are stored as hashes under a key prefix and indexed with a FLAT
// COSINE vector field plus the NUMERIC and TAG fields used for permission
// filtering. Queries are issued as raw FT.* commands over RESP2.
package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultAddr      = "localhost:6379"
	DefaultIndexName = "rag_document_chunks"
	DefaultKeyPrefix = "chunk:"

	// scoreField holds the KNN cosine distance in search replies.
	scoreField = "__vector_score"

	// deleteBatch bounds the keys fetched per delete round.
	deleteBatch = 500
)

// Config holds connection and schema settings.
type Config struct {
	Addr       string
	Password   string
	DB         int
	IndexName  string
	KeyPrefix  string
	Dimensions int
}

// commander is the subset of the go-redis client the index uses.
type commander interface {
	Do(ctx context.Context, args ...any) *goredis.Cmd
	Pipeline() goredis.Pipeliner
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Index is a RediSearch-backed vector index.
type Index struct {
	client     commander
	name       string
	prefix     string
	dimensions int
}

// New connects to Redis and creates the search index if it is missing.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// FT.* replies are parsed in their RESP2 array form.
		Protocol: 2,
	})

	idx, err := newIndex(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	if err := idx.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

func newIndex(client commander, cfg Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: redis index needs positive dimensions", domain.ErrInvalidInput)
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return &Index{
		client:     client,
		name:       cfg.IndexName,
		prefix:     cfg.KeyPrefix,
		dimensions: cfg.Dimensions,
	}, nil
}

// ensureIndex creates the index unless FT.INFO finds it.
func (x *Index) ensureIndex(ctx context.Context) error {
	if err := x.client.Do(ctx, "FT.INFO", x.name).Err(); err == nil {
		return nil
	}

	args := x.createArgs()
	if err := x.client.Do(ctx, args...).Err(); err != nil {
		return fmt.Errorf("redis: create index %s: %w", x.name, err)
	}
	logger.Event("info", "vector.index_created", "index", x.name, "dimensions", x.dimensions)
	return nil
}

func (x *Index) createArgs() []any {
	return []any{
		"FT.CREATE", x.name,
		"ON", "HASH",
		"PREFIX", "1", x.prefix,
		"SCHEMA",
		driven.FieldDocumentID, "TAG",
		driven.FieldContent, "TEXT",
		driven.FieldEmbedding, "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(x.dimensions),
		"DISTANCE_METRIC", "COSINE",
		driven.FieldChunkIndex, "NUMERIC",
		driven.FieldAccessLevel, "NUMERIC",
		driven.FieldDepartment, "TAG", "CASESENSITIVE",
		driven.FieldPageNumber, "NUMERIC",
		driven.FieldMetadata, "TEXT", "NOINDEX",
	}
}

func (x *Index) key(documentID string, chunkIndex int) string {
	return x.prefix + documentID + ":" + strconv.Itoa(chunkIndex)
}

// Insert writes rows in a single pipeline. Rows are validated before any
// write is sent.
func (x *Index) Insert(ctx context.Context, rows []driven.VectorRow) error {
	if len(rows) == 0 {
		return nil
	}

	type prepared struct {
		key    string
		fields []any
	}
	batch := make([]prepared, 0, len(rows))
	for _, r := range rows {
		if len(r.Embedding) != x.dimensions {
			return &domain.DimensionError{Expected: x.dimensions, Actual: len(r.Embedding)}
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("redis: marshal metadata: %w", err)
		}
		fields := []any{
			driven.FieldDocumentID, r.DocumentID,
			driven.FieldContent, r.Content,
			driven.FieldEmbedding, float32SliceToBytes(r.Embedding),
			driven.FieldChunkIndex, r.ChunkIndex,
			driven.FieldAccessLevel, r.AccessLevel,
			driven.FieldDepartment, r.Department,
			driven.FieldMetadata, string(meta),
		}
		if p, ok := r.Metadata["page_number"].(int); ok {
			fields = append(fields, driven.FieldPageNumber, p)
		}
		batch = append(batch, prepared{key: x.key(r.DocumentID, r.ChunkIndex), fields: fields})
	}

	pipe := x.client.Pipeline()
	for _, p := range batch {
		pipe.HSet(ctx, p.key, p.fields...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: insert %d rows: %w", len(rows), err)
	}
	return nil
}

// Search runs a filtered KNN query. Similarity is 1 minus the cosine
// distance Redis reports.
func (x *Index) Search(
	ctx context.Context,
	vector []float32,
	predicate string,
	limit int,
	fields []string,
) ([]driven.VectorHit, error) {
	if len(vector) != x.dimensions {
		return nil, &domain.DimensionError{Expected: x.dimensions, Actual: len(vector)}
	}
	if limit <= 0 {
		return nil, nil
	}

	reply, err := x.client.Do(ctx, x.searchArgs(vector, predicate, limit, fields)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: search: %w", err)
	}
	docs, err := parseSearchReply(reply)
	if err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, 0, len(docs))
	for _, d := range docs {
		dist, err := strconv.ParseFloat(fmt.Sprint(d.fields[scoreField]), 64)
		if err != nil {
			logger.Warn("redis: skipping hit %s with unparsable score", d.key)
			continue
		}
		delete(d.fields, scoreField)
		hits = append(hits, driven.VectorHit{Similarity: 1 - dist, Fields: d.fields})
	}
	return hits, nil
}

func (x *Index) searchArgs(vector []float32, predicate string, limit int, fields []string) []any {
	query := fmt.Sprintf("(%s)=>[KNN %d @%s $vec AS %s]", matchAllIfEmpty(predicate), limit, driven.FieldEmbedding, scoreField)

	args := []any{
		"FT.SEARCH", x.name, query,
		"PARAMS", "2", "vec", float32SliceToBytes(vector),
	}
	returned := append(slices.Clone(fields), scoreField)
	args = append(args, "RETURN", strconv.Itoa(len(returned)))
	for _, f := range returned {
		args = append(args, f)
	}
	return append(args,
		"SORTBY", scoreField, "ASC",
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	)
}

// Delete removes every row matching predicate, fetching keys in batches.
func (x *Index) Delete(ctx context.Context, predicate string) (int, error) {
	removed := 0
	for {
		reply, err := x.client.Do(ctx,
			"FT.SEARCH", x.name, matchAllIfEmpty(predicate),
			"NOCONTENT",
			"LIMIT", "0", strconv.Itoa(deleteBatch),
			"DIALECT", "2",
		).Result()
		if err != nil {
			return removed, fmt.Errorf("redis: find rows to delete: %w", err)
		}
		keys, err := parseKeys(reply)
		if err != nil {
			return removed, err
		}
		if len(keys) == 0 {
			return removed, nil
		}

		args := make([]any, 0, len(keys)+1)
		args = append(args, "DEL")
		for _, k := range keys {
			args = append(args, k)
		}
		n, err := x.client.Do(ctx, args...).Int()
		if err != nil {
			return removed, fmt.Errorf("redis: delete rows: %w", err)
		}
		removed += n
		if n == 0 {
			// The index still lists keys that no longer exist.
			return removed, nil
		}
	}
}

// DocumentIDs groups the index by document_id.
func (x *Index) DocumentIDs(ctx context.Context) ([]string, error) {
	reply, err := x.client.Do(ctx,
		"FT.AGGREGATE", x.name, "*",
		"GROUPBY", "1", "@"+driven.FieldDocumentID,
		"LIMIT", "0", "1000000",
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list document ids: %w", err)
	}
	return parseGroupReply(reply, driven.FieldDocumentID)
}

// Ping checks the Redis connection.
func (x *Index) Ping(ctx context.Context) error {
	if err := x.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (x *Index) Close() error {
	return x.client.Close()
}

func matchAllIfEmpty(predicate string) string {
	if strings.TrimSpace(predicate) == "" {
		return "*"
	}
	return predicate
}

// ==================== Reply parsing ====================

type searchDoc struct {
	key    string
	fields map[string]any
}

var errUnexpectedReply = errors.New("redis: unexpected reply shape")

// parseSearchReply decodes the RESP2 FT.SEARCH reply:
// [total, key1, [f1, v1, ...], key2, [...], ...].
func parseSearchReply(reply any) ([]searchDoc, error) {
	values, ok := reply.([]any)
	if !ok || len(values) == 0 {
		return nil, errUnexpectedReply
	}

	docs := make([]searchDoc, 0, (len(values)-1)/2)
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, errUnexpectedReply
		}
		pairs, ok := values[i+1].([]any)
		if !ok {
			return nil, errUnexpectedReply
		}
		fields := make(map[string]any, len(pairs)/2)
		for j := 0; j+1 < len(pairs); j += 2 {
			name, ok := pairs[j].(string)
			if !ok {
				continue
			}
			fields[name] = pairs[j+1]
		}
		docs = append(docs, searchDoc{key: key, fields: fields})
	}
	return docs, nil
}

// parseKeys decodes a NOCONTENT FT.SEARCH reply: [total, key1, key2, ...].
func parseKeys(reply any) ([]string, error) {
	values, ok := reply.([]any)
	if !ok || len(values) == 0 {
		return nil, errUnexpectedReply
	}
	keys := make([]string, 0, len(values)-1)
	for _, v := range values[1:] {
		k, ok := v.(string)
		if !ok {
			return nil, errUnexpectedReply
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// parseGroupReply decodes FT.AGGREGATE GROUPBY rows: [n, [field, value], ...].
func parseGroupReply(reply any, field string) ([]string, error) {
	values, ok := reply.([]any)
	if !ok || len(values) == 0 {
		return nil, errUnexpectedReply
	}
	var out []string
	for _, row := range values[1:] {
		pairs, ok := row.([]any)
		if !ok {
			return nil, errUnexpectedReply
		}
		for j := 0; j+1 < len(pairs); j += 2 {
			if name, _ := pairs[j].(string); name == field {
				if v, ok := pairs[j+1].(string); ok && v != "" {
					out = append(out, v)
				}
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

// float32SliceToBytes encodes a vector as little-endian FLOAT32, the layout
// RediSearch expects for VECTOR fields and query parameters.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
