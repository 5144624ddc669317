package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var _ driven.HistoryStore = (*Store)(nil)

// SaveQuery records a query under the caller-assigned queryID.
func (s *Store) SaveQuery(ctx context.Context, queryID, userID, query, sessionID string) error {
	if queryID == "" {
		return domain.ErrInvalidInput
	}
	if userID == "" {
		userID = domain.AnonymousUserID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (id, user_id, query, session_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, queryID, userID, query, nullString(sessionID), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving query: %w", err)
	}
	return nil
}

// SaveResponse records the answer for a saved query. The full answer is
// kept as JSON next to the summary columns.
func (s *Store) SaveResponse(ctx context.Context, queryID string, answer *domain.GeneratedAnswer) error {
	if answer == nil {
		return domain.ErrInvalidInput
	}

	payload, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshalling answer: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_responses
			(query_id, answer, sources_count, response_time_ms, is_fallback, model_used, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_id) DO UPDATE SET
			answer = excluded.answer,
			sources_count = excluded.sources_count,
			response_time_ms = excluded.response_time_ms,
			is_fallback = excluded.is_fallback,
			model_used = excluded.model_used,
			payload = excluded.payload
	`, queryID, answer.Answer, len(answer.Sources), answer.Performance.TotalMS,
		boolToInt(answer.Metadata.IsFallback), answer.Metadata.ModelUsed, string(payload), formatTime(answer.Timestamp))
	if err != nil {
		return fmt.Errorf("saving response: %w", err)
	}
	return nil
}

// UserHistory returns a page of a user's queries, newest first.
func (s *Store) UserHistory(ctx context.Context, userID string, page, pageSize int) (*domain.HistoryPage, error) {
	if page < 1 || pageSize < 1 {
		return nil, domain.ErrInvalidInput
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_history WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.query, r.answer, r.sources_count, r.response_time_ms, h.created_at
		FROM search_history h
		LEFT JOIN search_responses r ON r.query_id = h.id
		WHERE h.user_id = ?
		ORDER BY h.created_at DESC, h.rowid DESC
		LIMIT ? OFFSET ?
	`, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	items := make([]domain.HistoryEntry, 0, pageSize)
	for rows.Next() {
		var (
			e         domain.HistoryEntry
			answer    sql.NullString
			sources   sql.NullInt64
			elapsed   sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&e.QueryID, &e.Query, &answer, &sources, &elapsed, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.Answer = answer.String
		e.SourcesCount = int(sources.Int64)
		if elapsed.Valid {
			ms := elapsed.Int64
			e.ResponseTimeMS = &ms
		}
		e.CreatedAt = parseTime(createdAt)
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
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
func (s *Store) SaveFeedback(ctx context.Context, fb domain.Feedback) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM search_history WHERE id = ?`, fb.QueryID).Scan(&exists)
	if err != nil {
		return notFound(err, "query "+fb.QueryID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, query_id, user_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fb.ID, fb.QueryID, fb.UserID, fb.Rating, nullString(fb.Comment), formatTime(fb.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	return nil
}

// FeedbackFor returns the ratings recorded for a query, oldest first.
func (s *Store) FeedbackFor(ctx context.Context, queryID string) ([]domain.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_id, user_id, rating, COALESCE(comment, ''), created_at
		FROM feedback WHERE query_id = ? ORDER BY created_at, rowid
	`, queryID)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		var createdAt string
		if err := rows.Scan(&fb.ID, &fb.QueryID, &fb.UserID, &fb.Rating, &fb.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		fb.CreatedAt = parseTime(createdAt)
		out = append(out, fb)
	}
	return out, rows.Err()
}
