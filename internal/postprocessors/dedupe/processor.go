// Package dedupe drops chunks whose text already appeared earlier in the
// same document, such as repeated headers and footers.
package dedupe

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// Processor removes repeated chunks and renumbers the survivors.
type Processor struct {
	minLength int
}

// New returns a Processor. Chunks shorter than minLength runes are kept
// even when repeated.
func New(minLength int) *Processor {
	return &Processor{minLength: max(minLength, 0)}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "dedupe"
}

// Process keeps the first occurrence of each normalised chunk text.
func (p *Processor) Process(_ *domain.ParsedDocument, _ string, chunks []domain.TextChunk) ([]domain.TextChunk, error) {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]domain.TextChunk, 0, len(chunks))

	for _, c := range chunks {
		key := normalise(c.Content)
		if utf8.RuneCountInString(key) >= p.minLength {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		c.ChunkIndex = len(out)
		out = append(out, c)
	}
	return out, nil
}

func normalise(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
