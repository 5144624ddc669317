package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// DefaultRelevanceThreshold drops hits whose normalised score is below it.
const DefaultRelevanceThreshold = 0.7

// retrievalFields are requested from the vector index for every search.
var retrievalFields = []string{
	driven.FieldDocumentID,
	driven.FieldChunkIndex,
	driven.FieldContent,
	driven.FieldPageNumber,
	driven.FieldMetadata,
}

// queryEmbedder is the part of EmbeddingGenerator the retriever needs.
type queryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrievalTimings splits a search into its embedding and index phases.
type RetrievalTimings struct {
	Embedding time.Duration
	Search    time.Duration
}

// Retriever performs permission-filtered similarity search.
type Retriever struct {
	embedder  queryEmbedder
	index     driven.VectorIndex
	threshold float64
}

// NewRetriever creates a retriever. A threshold outside (0,1] uses the default.
func NewRetriever(embedder queryEmbedder, index driven.VectorIndex, threshold float64) *Retriever {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultRelevanceThreshold
	}
	return &Retriever{embedder: embedder, index: index, threshold: threshold}
}

// Search embeds query and returns at most topK chunks the user may read,
// scored in [0,1] and sorted by descending relevance. A nil user disables
// permission filtering. Every failure is wrapped in ErrRetrievalFailed.
func (r *Retriever) Search(
	ctx context.Context,
	query string,
	topK int,
	user *domain.UserContext,
) ([]domain.SearchResult, RetrievalTimings, error) {
	var timings RetrievalTimings

	start := time.Now()
	vec, err := r.embedder.Embed(ctx, query)
	timings.Embedding = time.Since(start)
	if err != nil {
		return nil, timings, fmt.Errorf("%w: embed query: %w", domain.ErrRetrievalFailed, err)
	}

	predicate := ""
	if user != nil {
		predicate = BuildFilter(*user)
		if err := ValidateFilter(predicate); err != nil {
			return nil, timings, fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, err)
		}
	}

	start = time.Now()
	hits, err := r.index.Search(ctx, vec, predicate, topK, retrievalFields)
	timings.Search = time.Since(start)
	if err != nil {
		return nil, timings, fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		score := NormaliseSimilarity(hit.Similarity)
		if score < r.threshold {
			continue
		}
		results = append(results, resultFromHit(hit, score))
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	logger.Event("debug", "retrieval.done",
		"hits", len(hits), "kept", len(results), "filtered", user != nil,
		"embedding_ms", timings.Embedding.Milliseconds(), "search_ms", timings.Search.Milliseconds())

	return results, timings, nil
}

// NormaliseSimilarity maps a cosine similarity in [-1,1] onto [0,1].
func NormaliseSimilarity(s float64) float64 {
	v := (s + 1) / 2
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func resultFromHit(hit driven.VectorHit, score float64) domain.SearchResult {
	res := domain.SearchResult{
		DocumentID:     stringField(hit.Fields, driven.FieldDocumentID),
		ChunkIndex:     intField(hit.Fields, driven.FieldChunkIndex),
		Content:        stringField(hit.Fields, driven.FieldContent),
		RelevanceScore: score,
		Metadata:       metadataField(hit.Fields),
	}
	if p, ok := optionalInt(hit.Fields[driven.FieldPageNumber]); ok {
		res.PageNumber = &p
	} else if p, ok := optionalInt(res.Metadata["page_number"]); ok {
		res.PageNumber = &p
	}
	res.Title, _ = res.Metadata["document_title"].(string)
	res.Source, _ = res.Metadata["document_source"].(string)
	return res
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intField(fields map[string]any, key string) int {
	n, _ := optionalInt(fields[key])
	return n
}

// optionalInt accepts the numeric shapes produced by JSON decoding and by
// Redis string replies.
func optionalInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		if n == "" {
			return 0, false
		}
		var i int
		if _, err := fmt.Sscan(n, &i); err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// metadataField decodes the metadata attribute, stored as a JSON string.
func metadataField(fields map[string]any) map[string]any {
	switch v := fields[driven.FieldMetadata].(type) {
	case map[string]any:
		return v
	case string:
		m := map[string]any{}
		if v != "" {
			if err := json.Unmarshal([]byte(v), &m); err != nil {
				logger.Debug("discarding undecodable chunk metadata: %v", err)
			}
		}
		return m
	default:
		return map[string]any{}
	}
}
