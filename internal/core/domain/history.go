package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// AnonymousUserID is recorded for queries without an authenticated user.
const AnonymousUserID = "00000000-0000-0000-0000-000000000001"

// HistoryEntry is one past query with a summary of its response.
type HistoryEntry struct {
	QueryID        string    `json:"query_id"`
	Query          string    `json:"query"`
	Answer         string    `json:"answer,omitempty"`
	SourcesCount   int       `json:"sources_count"`
	ResponseTimeMS *int64    `json:"response_time_ms,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryPage is a page of a user's search history, newest first.
type HistoryPage struct {
	Items      []HistoryEntry `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// TotalPagesFor computes the page count for total items.
func TotalPagesFor(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Feedback is a user's rating of an answer.
type Feedback struct {
	ID        string    `json:"feedback_id"`
	QueryID   string    `json:"query_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MaxFeedbackComment bounds the comment length in characters.
const MaxFeedbackComment = 500

// Validate checks the rating range and comment length.
func (f Feedback) Validate() error {
	if f.QueryID == "" {
		return fmt.Errorf("%w: query id is required", ErrValidation)
	}
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("%w: rating must be 1-5, got %d", ErrValidation, f.Rating)
	}
	if utf8.RuneCountInString(f.Comment) > MaxFeedbackComment {
		return fmt.Errorf("%w: comment exceeds %d characters", ErrValidation, MaxFeedbackComment)
	}
	return nil
}
