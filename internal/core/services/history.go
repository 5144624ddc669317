package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// History paging bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// HistoryService exposes past queries and collects feedback.
type HistoryService struct {
	store driven.HistoryStore
}

// NewHistoryService creates a history service.
func NewHistoryService(store driven.HistoryStore) *HistoryService {
	return &HistoryService{store: store}
}

// UserHistory returns a page of the user's queries, newest first.
// Out-of-range page arguments are clamped.
func (s *HistoryService) UserHistory(ctx context.Context, userID string, page, pageSize int) (*domain.HistoryPage, error) {
	if userID == "" {
		userID = domain.AnonymousUserID
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return s.store.UserHistory(ctx, userID, page, pageSize)
}

// SubmitFeedback validates and records a rating, returning "feedback_"
// followed by 8 hex characters.
func (s *HistoryService) SubmitFeedback(ctx context.Context, fb domain.Feedback) (string, error) {
	if fb.UserID == "" {
		fb.UserID = domain.AnonymousUserID
	}
	if err := fb.Validate(); err != nil {
		return "", err
	}

	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	fb.ID = "feedback_" + hex.EncodeToString(b[:])
	fb.CreatedAt = time.Now().UTC()

	if err := s.store.SaveFeedback(ctx, fb); err != nil {
		return "", err
	}
	return fb.ID, nil
}
