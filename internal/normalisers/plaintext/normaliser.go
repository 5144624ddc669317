// Package plaintext parses .txt files.
package plaintext

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
	"github.com/custodia-labs/docrag/internal/normalisers/filecheck"
)

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

// Parser handles plain text documents.
type Parser struct {
	cfg domain.ParserSettings
}

// New creates a new plain text parser.
func New(cfg domain.ParserSettings) *Parser {
	return &Parser{cfg: cfg}
}

// SupportedExtensions returns the extensions this parser handles.
func (p *Parser) SupportedExtensions() []string {
	return []string{".txt"}
}

// Parse reads the file as a single page.
func (p *Parser) Parse(_ context.Context, path string) (*domain.ParsedDocument, error) {
	f, err := filecheck.Load(path, filecheck.Rules{
		Extensions:    p.SupportedExtensions(),
		MIMEPrefixes:  []string{"text/plain"},
		MaxFileSizeMB: p.cfg.MaxFileSizeMB,
	})
	if err != nil {
		return nil, err
	}

	content, enc, err := filecheck.Decode(f.Data, p.cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return Build(f, content, enc, domain.FileTypeTXT, p.cfg.SkipEmptyPages), nil
}

// Build wraps decoded text as a one-page document. Blank text becomes an
// empty page when skipEmpty is set.
func Build(f *filecheck.File, content, enc string, ft domain.FileType, skipEmpty bool) *domain.ParsedDocument {
	if skipEmpty && strings.TrimSpace(content) == "" {
		logger.Warn("empty text file: %s", f.Path)
		content = ""
	}

	lines := filecheck.LineCount(content)
	return &domain.ParsedDocument{
		Path:     f.Path,
		FileType: ft,
		Pages: []domain.ParsedPage{{
			PageNumber: 1,
			Content:    content,
			Metadata: map[string]any{
				"line_count": lines,
				"encoding":   enc,
			},
		}},
		TotalPages:      1,
		TotalCharacters: utf8.RuneCountInString(content),
		Metadata:        f.Metadata(content),
	}
}
