package normalisers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
	"github.com/custodia-labs/docrag/internal/normalisers/docx"
	"github.com/custodia-labs/docrag/internal/normalisers/markdown"
	"github.com/custodia-labs/docrag/internal/normalisers/pdf"
	"github.com/custodia-labs/docrag/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.Parser = (*Registry)(nil)

// Registry maps lower-case extensions to parsers.
type Registry struct {
	byExt map[string]driven.Parser
}

// NewRegistry creates a registry holding the given parsers. A later
// parser replaces an earlier one for a shared extension.
func NewRegistry(parsers ...driven.Parser) *Registry {
	r := &Registry{byExt: make(map[string]driven.Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// NewDefaultRegistry registers the pdf, docx, plaintext and markdown parsers.
func NewDefaultRegistry(cfg domain.ParserSettings) *Registry {
	return NewRegistry(
		pdf.New(cfg),
		docx.New(cfg),
		plaintext.New(cfg),
		markdown.New(cfg),
	)
}

// Register adds p under each of its extensions.
func (r *Registry) Register(p driven.Parser) {
	for _, ext := range p.SupportedExtensions() {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, exists := r.byExt[ext]; exists {
			logger.Warn("replacing parser for %s", ext)
		}
		r.byExt[ext] = p
	}
}

// SupportedExtensions returns every registered extension, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ParserFor returns the parser for path's extension.
func (r *Registry) ParserFor(path string) (driven.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			domain.ErrUnsupportedType, ext, strings.Join(r.SupportedExtensions(), ", "))
	}
	return p, nil
}

// Parse checks that path exists, picks a parser by extension and runs it.
func (r *Registry) Parse(ctx context.Context, path string) (*domain.ParsedDocument, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}

	p, err := r.ParserFor(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := p.Parse(ctx, path)
	if err != nil {
		logger.Event("warn", "parse.failed", "path", path, "error", logger.Mask(err.Error()))
		return nil, err
	}

	logger.Event("info", "parse.done",
		"path", path,
		"type", string(doc.FileType),
		"pages", doc.TotalPages,
		"characters", doc.TotalCharacters,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}
