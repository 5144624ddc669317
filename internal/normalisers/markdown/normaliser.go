// Package markdown parses .md and .markdown files. The text is kept as
// written; structural counts go into the metadata.
package markdown

import (
	"context"
	"maps"
	"regexp"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/normalisers/filecheck"
	"github.com/custodia-labs/docrag/internal/normalisers/plaintext"
)

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

var (
	headingPattern   = regexp.MustCompile(`(?m)^#{1,6}\s+.+`)
	codeBlockPattern = regexp.MustCompile("(?s)```.*?```|~~~.*?~~~")
	linkPattern      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	imagePattern     = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	listItemPattern  = regexp.MustCompile(`(?m)^(?:[*\-+]\s+.+|\d+\.\s+.+)`)
)

// Parser handles Markdown documents.
type Parser struct {
	cfg domain.ParserSettings
}

// New creates a new Markdown parser.
func New(cfg domain.ParserSettings) *Parser {
	return &Parser{cfg: cfg}
}

// SupportedExtensions returns the extensions this parser handles.
func (p *Parser) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

// Parse reads the file as a single page.
func (p *Parser) Parse(_ context.Context, path string) (*domain.ParsedDocument, error) {
	f, err := filecheck.Load(path, filecheck.Rules{
		Extensions:    p.SupportedExtensions(),
		MIMEPrefixes:  []string{"text/plain", "text/markdown", "text/x-markdown"},
		MaxFileSizeMB: p.cfg.MaxFileSizeMB,
	})
	if err != nil {
		return nil, err
	}

	content, enc, err := filecheck.Decode(f.Data, p.cfg.Encoding)
	if err != nil {
		return nil, err
	}

	doc := plaintext.Build(f, content, enc, domain.FileTypeMarkdown, p.cfg.SkipEmptyPages)
	counts := Counts(doc.Pages[0].Content)
	maps.Copy(doc.Metadata, counts)
	maps.Copy(doc.Pages[0].Metadata, counts)
	if title := extractTitle(doc.Pages[0].Content); title != "" {
		doc.Metadata["title"] = title
	}
	return doc, nil
}

// Counts returns heading, code block, link, image and list item counts.
func Counts(content string) map[string]any {
	return map[string]any{
		"heading_count":    len(headingPattern.FindAllString(content, -1)),
		"code_block_count": len(codeBlockPattern.FindAllString(content, -1)),
		"link_count":       len(linkPattern.FindAllString(content, -1)),
		"image_count":      len(imagePattern.FindAllString(content, -1)),
		"list_item_count":  len(listItemPattern.FindAllString(content, -1)),
	}
}

// extractTitle returns the first level-one heading, if any.
func extractTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}
