package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity or file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed input to a component.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation indicates a malformed or unsafe query or file.
	ErrValidation = errors.New("validation failed")

	// Parser errors.

	// ErrUnsupportedType indicates a file extension no parser handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSizeLimitExceeded indicates a file is larger than the configured ceiling.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")

	// ErrCorrupted indicates an unreadable container or undecodable text.
	ErrCorrupted = errors.New("corrupted document")

	// ErrEncrypted indicates a password-protected document.
	ErrEncrypted = errors.New("encrypted document")

	// ErrMalicious indicates embedded executable content such as script actions or macros.
	ErrMalicious = errors.New("malicious content")

	// Chunker errors.

	// ErrEmptyContent indicates there is no text left to split.
	ErrEmptyContent = errors.New("empty content")

	// Embedding errors.

	// ErrEmbeddingFailed indicates the embedding provider failed after all retries.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrDimensionMismatch indicates the provider returned a vector of the wrong size.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrRetrievalFailed indicates the vector index search raised.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// Generation errors.

	// ErrGenerationTimeout indicates every generation attempt hit the wall-clock timeout.
	ErrGenerationTimeout = errors.New("generation timeout")

	// ErrGenerationFailed indicates the language model returned an error.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrPersistenceFailed indicates the relational store or vector index write failed.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrLLMUnavailable indicates the LLM is not configured, unreachable or
	// missing its model.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or the configured model is not installed.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// SizeLimitError reports both the actual and the permitted size of a file.
type SizeLimitError struct {
	ActualBytes int64
	LimitBytes  int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("size limit exceeded: %d bytes (limit %d bytes)", e.ActualBytes, e.LimitBytes)
}

// Unwrap allows errors.Is(err, ErrSizeLimitExceeded).
func (e *SizeLimitError) Unwrap() error {
	return ErrSizeLimitExceeded
}

// DimensionError reports a vector whose length differs from the configured dimension.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Unwrap allows errors.Is(err, ErrDimensionMismatch).
func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// PublicError is the only error shape shown to end users.
// Message is generic; CorrelationID links it to the detailed log entry.
type PublicError struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

func (e *PublicError) Error() string {
	return fmt.Sprintf("%s (ref %s)", e.Message, e.CorrelationID)
}
