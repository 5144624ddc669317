package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrValidation", ErrValidation},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrSizeLimitExceeded", ErrSizeLimitExceeded},
		{"ErrCorrupted", ErrCorrupted},
		{"ErrEncrypted", ErrEncrypted},
		{"ErrMalicious", ErrMalicious},
		{"ErrEmptyContent", ErrEmptyContent},
		{"ErrEmbeddingFailed", ErrEmbeddingFailed},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
		{"ErrRetrievalFailed", ErrRetrievalFailed},
		{"ErrGenerationTimeout", ErrGenerationTimeout},
		{"ErrGenerationFailed", ErrGenerationFailed},
		{"ErrPersistenceFailed", ErrPersistenceFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestSizeLimitError(t *testing.T) {
	err := &SizeLimitError{ActualBytes: 2048, LimitBytes: 1024}

	assert.True(t, errors.Is(err, ErrSizeLimitExceeded))
	assert.Contains(t, err.Error(), "2048")
	assert.Contains(t, err.Error(), "1024")

	wrapped := fmt.Errorf("parse: %w", err)
	var sle *SizeLimitError
	assert.True(t, errors.As(wrapped, &sle))
	assert.Equal(t, int64(2048), sle.ActualBytes)
}

func TestDimensionError(t *testing.T) {
	err := &DimensionError{Expected: 768, Actual: 384}

	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.False(t, errors.Is(err, ErrEmbeddingFailed))
	assert.Equal(t, "dimension mismatch: expected 768, got 384", err.Error())
}

func TestPublicError(t *testing.T) {
	err := &PublicError{Message: "something went wrong", CorrelationID: "abc"}
	assert.Equal(t, "something went wrong (ref abc)", err.Error())
}
