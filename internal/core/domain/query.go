package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Query bounds.
const (
	MinQueryLength = 5
	MaxQueryLength = 200
	MinResultLimit = 1
	MaxResultLimit = 20
)

var (
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(union|select|drop|delete|insert|update)\b`),
		regexp.MustCompile(`--|;|/\*|\*/`),
		regexp.MustCompile(`(?i)\bor\b\s+\d+\s*=\s*\d+`),
		regexp.MustCompile(`(?i)\band\b\s+\d+\s*=\s*\d+`),
	}
	scriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)onerror\s*=`),
		regexp.MustCompile(`(?i)onload\s*=`),
	}
	allowedQuery = regexp.MustCompile(`^[\p{L}\p{N}\s?.,!\-()]+$`)
)

// ValidateQuery normalises whitespace and rejects queries that are too short,
// too long, contain injection patterns or characters outside the allowed set.
// It returns the normalised query.
func ValidateQuery(query string) (string, error) {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return "", fmt.Errorf("%w: query must not be empty", ErrValidation)
	}

	n := utf8.RuneCountInString(q)
	if n < MinQueryLength || n > MaxQueryLength {
		return "", fmt.Errorf("%w: query must be %d-%d characters, got %d",
			ErrValidation, MinQueryLength, MaxQueryLength, n)
	}

	for _, p := range sqlPatterns {
		if p.MatchString(q) {
			return "", fmt.Errorf("%w: query contains a disallowed pattern", ErrValidation)
		}
	}
	for _, p := range scriptPatterns {
		if p.MatchString(q) {
			return "", fmt.Errorf("%w: query contains script content", ErrValidation)
		}
	}
	if !allowedQuery.MatchString(q) {
		return "", fmt.Errorf("%w: query may only contain letters, digits, spaces and basic punctuation", ErrValidation)
	}

	return q, nil
}

// ValidateLimit checks the requested result count.
func ValidateLimit(limit int) error {
	if limit < MinResultLimit || limit > MaxResultLimit {
		return fmt.Errorf("%w: limit must be %d-%d, got %d", ErrValidation, MinResultLimit, MaxResultLimit, limit)
	}
	return nil
}
