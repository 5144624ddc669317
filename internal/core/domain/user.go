package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AccessLevel ranks document and user sensitivity.
type AccessLevel int

// Access levels.
const (
	AccessPublic       AccessLevel = 1
	AccessInternal     AccessLevel = 2
	AccessConfidential AccessLevel = 3
)

// AdminDepartment is the department whose members see every document.
const AdminDepartment = "Management"

// Valid reports whether the level is one of 1, 2 or 3.
func (l AccessLevel) Valid() bool {
	return l >= AccessPublic && l <= AccessConfidential
}

// String returns the level name.
func (l AccessLevel) String() string {
	switch l {
	case AccessPublic:
		return "public"
	case AccessInternal:
		return "internal"
	case AccessConfidential:
		return "confidential"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseAccessLevel accepts a level name or its number. An empty string
// yields zero, which callers treat as unset.
func ParseAccessLevel(s string) (AccessLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return 0, nil
	case "public":
		return AccessPublic, nil
	case "internal":
		return AccessInternal, nil
	case "confidential":
		return AccessConfidential, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !AccessLevel(n).Valid() {
		return 0, fmt.Errorf("%w: unknown access level %q", ErrValidation, s)
	}
	return AccessLevel(n), nil
}

// UserContext is the requesting principal, supplied per request by the
// authentication collaborator. It is never persisted by the core.
type UserContext struct {
	UserID      string
	AccessLevel AccessLevel
	Department  string
}

// Validate checks the level is in range and the department is non-empty.
func (u UserContext) Validate() error {
	if !u.AccessLevel.Valid() {
		return fmt.Errorf("%w: access level %d out of range", ErrValidation, u.AccessLevel)
	}
	if strings.TrimSpace(u.Department) == "" {
		return fmt.Errorf("%w: department is required", ErrValidation)
	}
	return nil
}

// IsAdmin reports whether the user belongs to the administrator department.
func (u UserContext) IsAdmin() bool {
	return u.Department == AdminDepartment
}

// NewUserContext builds a principal from caller-supplied values. A zero
// level means an anonymous public reader; levels above public require a
// department.
func NewUserContext(userID string, level AccessLevel, department string) (*UserContext, error) {
	if userID == "" {
		userID = AnonymousUserID
	}
	if level == 0 {
		level = AccessPublic
	}
	u := &UserContext{UserID: userID, AccessLevel: level, Department: strings.TrimSpace(department)}
	if level == AccessPublic && u.Department == "" {
		return u, nil
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}
