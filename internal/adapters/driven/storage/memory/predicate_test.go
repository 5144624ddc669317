package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/services"
)

func row(level int, dept, docID string) storedRow {
	return storedRow{VectorRow: driven.VectorRow{DocumentID: docID, AccessLevel: level, Department: dept}}
}

func TestCompilePredicate(t *testing.T) {
	tests := []struct {
		name      string
		predicate string
		row       storedRow
		want      bool
	}{
		{"empty matches all", "", row(3, "HR", "d"), true},
		{"star matches all", "*", row(3, "HR", "d"), true},
		{"range inclusive", "@access_level:[1 1]", row(1, "", "d"), true},
		{"range excludes", "@access_level:[1 1]", row(2, "HR", "d"), false},
		{"open range", "@access_level:[2 +inf]", row(3, "HR", "d"), true},
		{"exclusive bound", "@access_level:[(1 3]", row(1, "", "d"), false},
		{"tag", "@department:{HR}", row(2, "HR", "d"), true},
		{"department is case sensitive", "@department:{hr}", row(2, "HR", "d"), false},
		{"department exact case", "@department:{Engineering}", row(2, "engineering", "d"), false},
		{"document id case insensitive", "@document_id:{ABC}", row(1, "", "abc"), true},
		{"tag alternatives", "@department:{IT | HR}", row(2, "HR", "d"), true},
		{"escaped tag", `@document_id:{9b2f\-41}`, row(1, "", "9b2f-41"), true},
		{"escaped space", `@department:{Human\ Resources}`, row(2, "Human Resources", "d"), true},
		{"implicit and", "@access_level:[2 2] @department:{HR}", row(2, "IT", "d"), false},
		{"or of groups", "(@access_level:[1 1]) | (@department:{HR})", row(3, "HR", "d"), true},
		{"negation", "-@department:{HR}", row(2, "HR", "d"), false},
		{"unknown field never matches", "@colour:{red}", row(1, "", "d"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := compilePredicate(tt.predicate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.match(tt.row))
		})
	}
}

func TestCompilePredicate_Errors(t *testing.T) {
	for _, s := range []string{
		"@access_level:[1]",
		"@access_level:[1 2",
		"@department:{HR",
		"(@department:{HR}",
		"@department",
		"department:{HR}",
		"@access_level:[a b]",
		"@department:{HR} )",
	} {
		_, err := compilePredicate(s)
		assert.Error(t, err, s)
	}
}

func TestCompilePredicate_AgreesWithAccessFilter(t *testing.T) {
	departments := []string{"HR", "IT", "Management", "R&D", "Human Resources"}
	for _, level := range []domain.AccessLevel{domain.AccessPublic, domain.AccessInternal, domain.AccessConfidential} {
		for _, userDept := range departments {
			user := domain.UserContext{UserID: "u", AccessLevel: level, Department: userDept}
			p, err := compilePredicate(services.BuildFilter(user))
			require.NoError(t, err)

			for docLevel := domain.AccessPublic; docLevel <= domain.AccessConfidential; docLevel++ {
				for _, docDept := range departments {
					want := services.CanAccess(user, docLevel, docDept)
					got := p.match(row(int(docLevel), docDept, "d"))
					assert.Equal(t, want, got, "user %d/%s doc %d/%s", level, userDept, docLevel, docDept)
				}
			}
		}
	}
}
