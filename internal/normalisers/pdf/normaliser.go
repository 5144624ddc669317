// Package pdf parses PDF files page by page with ledongthuc/pdf.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
	"github.com/custodia-labs/docrag/internal/normalisers/filecheck"
)

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

// activeContent matches PDF name objects that launch scripts or programs.
var activeContent = regexp.MustCompile(`/(?:JavaScript|JS|Launch)(?:[\s/<>\[\]()%]|$)`)

var encryptKey = regexp.MustCompile(`/Encrypt(?:[\s/<>\[\]()%]|$)`)

// infoFields maps Info dictionary keys to metadata keys.
var infoFields = map[string]string{
	"Title":        "title",
	"Author":       "author",
	"Subject":      "subject",
	"Creator":      "creator",
	"Producer":     "producer",
	"CreationDate": "creation_date",
	"ModDate":      "mod_date",
}

// Parser handles PDF documents.
type Parser struct {
	cfg domain.ParserSettings
}

// New creates a new PDF parser.
func New(cfg domain.ParserSettings) *Parser {
	return &Parser{cfg: cfg}
}

// SupportedExtensions returns the extensions this parser handles.
func (p *Parser) SupportedExtensions() []string {
	return []string{".pdf"}
}

// Parse extracts text per page. Pages whose text cannot be extracted are
// logged and kept empty.
func (p *Parser) Parse(ctx context.Context, path string) (*domain.ParsedDocument, error) {
	f, err := filecheck.Load(path, filecheck.Rules{
		Extensions:    p.SupportedExtensions(),
		MIMEPrefixes:  []string{"application/pdf"},
		MaxFileSizeMB: p.cfg.MaxFileSizeMB,
	})
	if err != nil {
		return nil, err
	}

	reader, err := open(f.Data)
	if err != nil {
		if encryptKey.Match(f.Data) {
			return nil, fmt.Errorf("%w: %s", domain.ErrEncrypted, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCorrupted, path, err)
	}
	if !reader.Trailer().Key("Encrypt").IsNull() {
		return nil, fmt.Errorf("%w: %s", domain.ErrEncrypted, path)
	}
	if hasActiveContent(reader, f.Data) {
		return nil, fmt.Errorf("%w: %s contains script or launch actions", domain.ErrMalicious, path)
	}

	total := reader.NumPage()
	doc := &domain.ParsedDocument{
		Path:       path,
		FileType:   domain.FileTypePDF,
		TotalPages: total,
		Pages:      make([]domain.ParsedPage, 0, total),
	}

	var all strings.Builder
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		text, err := pageText(page)
		if err != nil {
			logger.Warn("pdf %s: page %d text extraction failed: %v", path, i, err)
			text = ""
		}
		if p.cfg.SkipEmptyPages && strings.TrimSpace(text) == "" {
			logger.Debug("pdf %s: skipping empty page %d", path, i)
			continue
		}

		doc.Pages = append(doc.Pages, domain.ParsedPage{
			PageNumber: i,
			Content:    text,
			Metadata:   pageMetadata(page),
		})
		doc.TotalCharacters += utf8.RuneCountInString(text)
		all.WriteString(text)
		all.WriteByte('\n')
	}

	doc.Metadata = f.Metadata(all.String())
	for k, v := range documentInfo(reader) {
		doc.Metadata[k] = v
	}
	return doc, nil
}

// open wraps pdf.NewReader, which panics on some malformed inputs.
func open(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("malformed page: %v", rec)
		}
	}()
	if page.V.IsNull() {
		return "", fmt.Errorf("page object missing")
	}
	return page.GetPlainText(nil)
}

// hasActiveContent checks the catalog's open action and name tree, then
// falls back to a scan of the raw bytes.
func hasActiveContent(r *pdf.Reader, data []byte) bool {
	root := r.Trailer().Key("Root")
	if action := root.Key("OpenAction"); !action.IsNull() {
		switch action.Key("S").Name() {
		case "JavaScript", "Launch":
			return true
		}
	}
	if !root.Key("Names").Key("JavaScript").IsNull() {
		return true
	}
	return activeContent.Match(data)
}

// inherited looks key up on the page and then on its ancestors.
func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; !v.IsNull() && depth < 32; depth++ {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func pageMetadata(page pdf.Page) map[string]any {
	meta := map[string]any{"rotation": int64(0)}
	if rot := inherited(page.V, "Rotate"); rot.Kind() == pdf.Integer {
		meta["rotation"] = rot.Int64()
	}
	if box := inherited(page.V, "MediaBox"); box.Kind() == pdf.Array && box.Len() == 4 {
		meta["mediabox"] = fmt.Sprintf("[%g %g %g %g]",
			box.Index(0).Float64(), box.Index(1).Float64(), box.Index(2).Float64(), box.Index(3).Float64())
	}
	return meta
}

func documentInfo(r *pdf.Reader) map[string]any {
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}
	out := make(map[string]any, len(infoFields))
	for key, name := range infoFields {
		v := info.Key(key)
		if v.Kind() != pdf.String {
			continue
		}
		if s := strings.TrimSpace(v.Text()); s != "" {
			out[name] = s
		}
	}
	return out
}
