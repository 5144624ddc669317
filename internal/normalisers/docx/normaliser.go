// Package docx parses Word documents from their OOXML zip container.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/normalisers/filecheck"
)

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

const (
	documentPart     = "word/document.xml"
	corePart         = "docProps/core.xml"
	contentTypesPart = "[Content_Types].xml"
)

// Parser handles DOCX documents.
type Parser struct {
	cfg domain.ParserSettings
}

// New creates a new DOCX parser.
func New(cfg domain.ParserSettings) *Parser {
	return &Parser{cfg: cfg}
}

// SupportedExtensions returns the extensions this parser handles.
func (p *Parser) SupportedExtensions() []string {
	return []string{".docx"}
}

// Parse extracts paragraph text as a single page. DOCX has no fixed
// pagination.
func (p *Parser) Parse(_ context.Context, path string) (*domain.ParsedDocument, error) {
	f, err := filecheck.Load(path, filecheck.Rules{
		Extensions:    p.SupportedExtensions(),
		MIMEPrefixes:  []string{"application/zip", "application/vnd.openxmlformats"},
		MaxFileSizeMB: p.cfg.MaxFileSizeMB,
	})
	if err != nil {
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(f.Data), int64(len(f.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a zip container: %w", domain.ErrCorrupted, path, err)
	}

	if err := checkMacros(reader); err != nil {
		return nil, err
	}

	raw, err := readPart(reader, documentPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCorrupted, path, err)
	}
	body, err := parseBody(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCorrupted, path, err)
	}

	kept := make([]string, 0, len(body.paragraphs))
	for _, para := range body.paragraphs {
		if p.cfg.SkipEmptyPages && strings.TrimSpace(para) == "" {
			continue
		}
		kept = append(kept, para)
	}
	text := strings.Join(kept, "\n")

	meta := f.Metadata(text)
	for k, v := range coreProperties(reader) {
		meta[k] = v
	}

	return &domain.ParsedDocument{
		Path:     path,
		FileType: domain.FileTypeDOCX,
		Pages: []domain.ParsedPage{{
			PageNumber: 1,
			Content:    text,
			Metadata: map[string]any{
				"paragraph_count": len(body.paragraphs),
				"section_count":   body.sections,
			},
		}},
		TotalPages:      1,
		TotalCharacters: utf8.RuneCountInString(text),
		Metadata:        meta,
	}, nil
}

// checkMacros rejects containers carrying a VBA project.
func checkMacros(reader *zip.Reader) error {
	for _, file := range reader.File {
		if strings.EqualFold(pathBase(file.Name), "vbaProject.bin") {
			return fmt.Errorf("%w: document contains a VBA project", domain.ErrMalicious)
		}
	}

	types, err := readPart(reader, contentTypesPart)
	if err != nil {
		return nil
	}
	lower := strings.ToLower(string(types))
	if strings.Contains(lower, "macroenabled") || strings.Contains(lower, "vbaproject") {
		return fmt.Errorf("%w: macro-enabled content type", domain.ErrMalicious)
	}
	return nil
}

func pathBase(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

var errPartMissing = errors.New("part missing")

func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if !strings.EqualFold(file.Name, name) {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s: %w", name, errPartMissing)
}

type body struct {
	paragraphs []string
	sections   int
}

// parseBody walks word/document.xml collecting one string per paragraph,
// including paragraphs inside tables.
func parseBody(content []byte) (body, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		out   body
		cur   strings.Builder
		depth int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return body{}, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				depth++
				if depth == 1 {
					cur.Reset()
				}
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return body{}, err
				}
				cur.WriteString(text)
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			case "sectPr":
				out.sections++
			}
		case xml.EndElement:
			if t.Name.Local == "p" && depth > 0 {
				depth--
				if depth == 0 {
					out.paragraphs = append(out.paragraphs, cur.String())
				}
			}
		}
	}

	if out.sections == 0 && len(out.paragraphs) > 0 {
		out.sections = 1
	}
	return out, nil
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title          string `xml:"title"`
	Creator        string `xml:"creator"`
	Subject        string `xml:"subject"`
	Keywords       string `xml:"keywords"`
	Description    string `xml:"description"`
	Category       string `xml:"category"`
	LastModifiedBy string `xml:"lastModifiedBy"`
	Revision       string `xml:"revision"`
	Created        string `xml:"created"`
	Modified       string `xml:"modified"`
}

// coreProperties returns the non-empty core properties. A missing or
// malformed core part yields nil.
func coreProperties(reader *zip.Reader) map[string]any {
	content, err := readPart(reader, corePart)
	if err != nil {
		return nil
	}

	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return nil
	}

	props := map[string]string{
		"title":            core.Title,
		"author":           core.Creator,
		"subject":          core.Subject,
		"keywords":         core.Keywords,
		"comments":         core.Description,
		"category":         core.Category,
		"last_modified_by": core.LastModifiedBy,
		"revision":         core.Revision,
		"created":          core.Created,
		"modified":         core.Modified,
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}
