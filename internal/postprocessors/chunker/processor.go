// Package chunker provides a recursive character text splitter.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 50

// Accepted option ranges.
const (
	MinChunkSize = 100
	MaxChunkSize = 2000
	MaxOverlap   = 500
)

// DefaultSeparators are tried in order, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

var (
	_ driven.Chunker       = (*Processor)(nil)
	_ driven.PostProcessor = (*Processor)(nil)
)

// Processor splits text into chunks of at most chunkSize characters,
// preferring paragraph, then line, sentence and word boundaries. Adjacent
// chunks share up to overlap characters. Lengths are counted in runes.
type Processor struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters. Values outside
// [MinChunkSize, MaxChunkSize] are ignored.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size >= MinChunkSize && size <= MaxChunkSize {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters. Values
// outside [0, MaxOverlap] are ignored.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 && overlap <= MaxOverlap {
			p.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list.
func WithSeparators(seps []string) Option {
	return func(p *Processor) {
		if len(seps) > 0 {
			p.separators = append([]string(nil), seps...)
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Process creates chunks from the document. Input chunks are ignored.
func (p *Processor) Process(doc *domain.ParsedDocument, documentID string, _ []domain.TextChunk) ([]domain.TextChunk, error) {
	return p.ChunkDocument(doc, documentID)
}

// ChunkDocument joins the non-empty pages with blank lines and splits the
// result. Every chunk is attributed to the last page of the document.
func (p *Processor) ChunkDocument(doc *domain.ParsedDocument, documentID string) ([]domain.TextChunk, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, domain.ErrEmptyContent
	}

	parts := make([]string, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Content) != "" {
			parts = append(parts, page.Content)
		}
	}

	meta := ChunkMetadata{DocumentID: documentID, Title: doc.Title()}
	if doc.TotalPages > 0 {
		last := doc.TotalPages
		meta.PageNumber = &last
	}
	return p.ChunkText(strings.Join(parts, "\n\n"), meta)
}

// ChunkMetadata is copied onto every chunk produced by ChunkText.
type ChunkMetadata struct {
	DocumentID string
	Title      string
	PageNumber *int
}

// ChunkText splits raw text. Blank text fails with domain.ErrEmptyContent.
func (p *Processor) ChunkText(text string, meta ChunkMetadata) ([]domain.TextChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyContent
	}

	pieces := p.Split(text)
	chunks := make([]domain.TextChunk, len(pieces))
	for i, piece := range pieces {
		var page *int
		if meta.PageNumber != nil {
			n := *meta.PageNumber
			page = &n
		}
		chunks[i] = domain.TextChunk{
			Content:       piece,
			ChunkIndex:    i,
			DocumentID:    meta.DocumentID,
			DocumentTitle: meta.Title,
			PageNumber:    page,
		}
	}
	return chunks, nil
}

// Split returns the chunk texts for text. Every chunk except the last
// holds between 90% and 100% of the chunk size once trimmed. Separators
// are honoured in priority order as long as that bound can be met; when it
// cannot, the next piece is split at a finer separator, down to single
// characters.
func (p *Processor) Split(text string) []string {
	return p.merge(p.pieces(text, p.separators))
}

// piece is a run of text with the separators still available to split it.
type piece struct {
	text  string
	finer []string
}

// pieces splits text at the coarsest separator it contains and recurses
// into every part that is not shorter than the chunk size.
func (p *Processor) pieces(text string, separators []string) []piece {
	sep, finer := pickSeparator(text, separators)
	var out []piece
	for _, s := range splitKeepSeparator(text, sep) {
		if runeLen(s) < p.chunkSize || len(finer) == 0 {
			out = append(out, piece{text: s, finer: finer})
			continue
		}
		out = append(out, p.pieces(s, finer)...)
	}
	return out
}

// pickSeparator returns the first separator found in text and the ones
// after it. The empty separator always matches. When nothing matches the
// last separator is returned with nothing finer.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			return s, separators[i+1:]
		}
	}
	if len(separators) == 0 {
		return "", nil
	}
	return separators[len(separators)-1], nil
}

// splitKeepSeparator splits text on sep, attaching each separator to the
// start of the piece that follows it. An empty sep splits into runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, part := range parts[1:] {
		out = append(out, sep+part)
	}
	return out
}

// merge packs pieces into chunks, carrying up to overlap characters of
// trailing pieces into the next chunk. A chunk that would be emitted below
// the minimum fill takes the start of the next piece instead, after that
// piece is split one separator finer.
func (p *Processor) merge(in []piece) []string {
	minFill := p.chunkSize * 9 / 10

	// stack holds the pending pieces in reverse order.
	stack := make([]piece, len(in))
	for i, pc := range in {
		stack[len(in)-1-i] = pc
	}

	var chunks, current []string
	total := 0
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		n := runeLen(next.text)

		if total+n > p.chunkSize && len(current) > 0 {
			chunk := strings.TrimSpace(strings.Join(current, ""))
			if runeLen(chunk) < minFill && len(next.finer) > 0 {
				sep, finer := pickSeparator(next.text, next.finer)
				parts := splitKeepSeparator(next.text, sep)
				stack = stack[:len(stack)-1]
				for i := len(parts) - 1; i >= 0; i-- {
					stack = append(stack, piece{text: parts[i], finer: finer})
				}
				continue
			}
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > p.overlap || (total+n > p.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}

		current = append(current, next.text)
		total += n
		stack = stack[:len(stack)-1]
	}

	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Stats summarises chunk lengths in characters.
type Stats struct {
	TotalChunks     int `json:"total_chunks"`
	AvgChunkSize    int `json:"avg_chunk_size"`
	MinChunkSize    int `json:"min_chunk_size"`
	MaxChunkSize    int `json:"max_chunk_size"`
	TotalCharacters int `json:"total_characters"`
}

// Statistics computes Stats for chunks. The average is truncated.
func Statistics(chunks []domain.TextChunk) Stats {
	if len(chunks) == 0 {
		return Stats{}
	}
	s := Stats{TotalChunks: len(chunks), MinChunkSize: runeLen(chunks[0].Content)}
	for _, c := range chunks {
		n := runeLen(c.Content)
		s.TotalCharacters += n
		s.MinChunkSize = min(s.MinChunkSize, n)
		s.MaxChunkSize = max(s.MaxChunkSize, n)
	}
	s.AvgChunkSize = s.TotalCharacters / len(chunks)
	return s
}
