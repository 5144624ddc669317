package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

type historyRow struct {
	id        string
	userID    string
	query     string
	sessionID string
	createdAt time.Time
	seq       int
	response  *domain.GeneratedAnswer
}

// HistoryStore is an in-memory implementation of driven.HistoryStore.
type HistoryStore struct {
	mu       sync.RWMutex
	queries  map[string]*historyRow
	feedback []domain.Feedback
	next     int
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{queries: make(map[string]*historyRow)}
}

// SaveQuery records a query under the caller-assigned queryID.
func (s *HistoryStore) SaveQuery(_ context.Context, queryID, userID, query, sessionID string) error {
	if queryID == "" {
		return domain.ErrInvalidInput
	}
	if userID == "" {
		userID = domain.AnonymousUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.queries[queryID]; exists {
		return fmt.Errorf("%w: query %s already recorded", domain.ErrInvalidInput, queryID)
	}
	s.next++
	s.queries[queryID] = &historyRow{
		id:        queryID,
		userID:    userID,
		query:     query,
		sessionID: sessionID,
		createdAt: time.Now().UTC(),
		seq:       s.next,
	}
	return nil
}

// SaveResponse records the answer for a saved query.
func (s *HistoryStore) SaveResponse(_ context.Context, queryID string, answer *domain.GeneratedAnswer) error {
	if answer == nil {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.queries[queryID]
	if !ok {
		return fmt.Errorf("query %s: %w", queryID, domain.ErrNotFound)
	}
	cp := *answer
	row.response = &cp
	return nil
}

// UserHistory returns a page of a user's queries, newest first.
func (s *HistoryStore) UserHistory(_ context.Context, userID string, page, pageSize int) (*domain.HistoryPage, error) {
	if page < 1 || pageSize < 1 {
		return nil, domain.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*historyRow
	for _, r := range s.queries {
		if r.userID == userID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	total := len(rows)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	items := make([]domain.HistoryEntry, 0, end-start)
	for _, r := range rows[start:end] {
		e := domain.HistoryEntry{QueryID: r.id, Query: r.query, CreatedAt: r.createdAt}
		if r.response != nil {
			e.Answer = r.response.Answer
			e.SourcesCount = len(r.response.Sources)
			ms := r.response.Performance.TotalMS
			e.ResponseTimeMS = &ms
		}
		items = append(items, e)
	}

	return &domain.HistoryPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: domain.TotalPagesFor(total, pageSize),
	}, nil
}

// SaveFeedback records a rating. The query must exist.
func (s *HistoryStore) SaveFeedback(_ context.Context, fb domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[fb.QueryID]; !ok {
		return fmt.Errorf("query %s: %w", fb.QueryID, domain.ErrNotFound)
	}
	s.feedback = append(s.feedback, fb)
	return nil
}

// FeedbackFor returns the ratings recorded for a query, oldest first.
func (s *HistoryStore) FeedbackFor(_ context.Context, queryID string) ([]domain.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Feedback
	for _, fb := range s.feedback {
		if fb.QueryID == queryID {
			out = append(out, fb)
		}
	}
	return out, nil
}
