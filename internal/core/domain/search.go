package domain

import "time"

// SearchResult is one retrieved chunk with a normalised relevance score.
// Results are permission-sensitive and never cached across users.
type SearchResult struct {
	DocumentID     string         `json:"document_id"`
	ChunkIndex     int            `json:"chunk_index"`
	Content        string         `json:"chunk_content"`
	PageNumber     *int           `json:"page_number,omitempty"`
	RelevanceScore float64        `json:"relevance_score"`
	Title          string         `json:"document_title"`
	Source         string         `json:"document_source"`
	Metadata       map[string]any `json:"-"`
}

// FallbackReason is the machine-readable reason a templated answer was returned.
type FallbackReason string

// Fallback reasons. Wrapped errors use the "error: <msg>" form.
const (
	FallbackNone          FallbackReason = ""
	FallbackNoDocuments   FallbackReason = "no_documents"
	FallbackLowConfidence FallbackReason = "low_confidence"
	FallbackNoSource      FallbackReason = "no_source_citation"
)

// ErrorFallbackReason wraps an error message as a fallback reason.
func ErrorFallbackReason(msg string) FallbackReason {
	return FallbackReason("error: " + msg)
}

// Performance holds per-stage timings in milliseconds.
type Performance struct {
	EmbeddingMS  int64 `json:"embedding_ms"`
	SearchMS     int64 `json:"search_ms"`
	GenerationMS int64 `json:"generation_ms"`
	TotalMS      int64 `json:"total_ms"`
}

// AnswerMetadata describes how an answer was produced.
type AnswerMetadata struct {
	IsFallback     bool           `json:"is_fallback"`
	FallbackReason FallbackReason `json:"fallback_reason,omitempty"`
	ModelUsed      string         `json:"model_used"`
	ResultCount    int            `json:"result_count"`
}

// GeneratedAnswer is the caller-facing answer object. Created once per query.
type GeneratedAnswer struct {
	QueryID     string         `json:"query_id"`
	Query       string         `json:"query"`
	Answer      string         `json:"answer"`
	Sources     []SearchResult `json:"sources"`
	Performance Performance    `json:"performance"`
	Metadata    AnswerMetadata `json:"metadata"`
	Timestamp   time.Time      `json:"timestamp"`
}
