package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// publicPredicate matches public documents only. Unknown levels fall back to it.
var publicPredicate = fmt.Sprintf("@%s:[1 1]", driven.FieldAccessLevel)

// BuildFilter returns the vector index predicate restricting results to the
// documents user may read.
func BuildFilter(user domain.UserContext) string {
	if user.IsAdmin() {
		return fmt.Sprintf("@%s:[1 +inf]", driven.FieldAccessLevel)
	}

	dept := EscapeTag(user.Department)
	switch user.AccessLevel {
	case domain.AccessPublic:
		return publicPredicate
	case domain.AccessInternal:
		return fmt.Sprintf("(%s) | (@%s:[2 2] @%s:{%s})",
			publicPredicate, driven.FieldAccessLevel, driven.FieldDepartment, dept)
	case domain.AccessConfidential:
		return fmt.Sprintf("(%s) | (@%s:{%s})", publicPredicate, driven.FieldDepartment, dept)
	default:
		return publicPredicate
	}
}

// DocumentIDFilter returns the predicate selecting every row of one document.
func DocumentIDFilter(documentID string) string {
	return fmt.Sprintf("@%s:{%s}", driven.FieldDocumentID, EscapeTag(documentID))
}

// CanAccess reports whether user may read a document with the given level and department.
func CanAccess(user domain.UserContext, level domain.AccessLevel, department string) bool {
	switch {
	case level == domain.AccessPublic:
		return true
	case user.IsAdmin():
		return true
	case level == domain.AccessInternal:
		return user.AccessLevel >= domain.AccessInternal && user.Department == department
	case level == domain.AccessConfidential:
		return user.AccessLevel >= domain.AccessConfidential && user.Department == department
	default:
		return false
	}
}

var forbiddenFilterTokens = regexp.MustCompile(`(?i)\b(drop|delete|insert|update)\b|--|;`)

// ValidateFilter rejects predicates that are empty, lack an access_level term
// or carry statement keywords.
func ValidateFilter(predicate string) error {
	if strings.TrimSpace(predicate) == "" {
		return fmt.Errorf("%w: empty filter", domain.ErrValidation)
	}
	if !strings.Contains(predicate, driven.FieldAccessLevel) {
		return fmt.Errorf("%w: filter has no %s term", domain.ErrValidation, driven.FieldAccessLevel)
	}
	if forbiddenFilterTokens.MatchString(predicate) {
		return fmt.Errorf("%w: filter contains a forbidden token", domain.ErrValidation)
	}
	return nil
}

// EscapeTag escapes RediSearch TAG punctuation so a value matches literally.
func EscapeTag(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if strings.ContainsRune(`,.<>{}[]"':;!@#$%^&*()-+=~|/\ `, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
