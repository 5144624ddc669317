package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// FileType tags the format of an ingested file.
type FileType string

// Supported file types.
const (
	FileTypePDF      FileType = "PDF"
	FileTypeDOCX     FileType = "DOCX"
	FileTypeTXT      FileType = "TXT"
	FileTypeMarkdown FileType = "MARKDOWN"
)

// FileTypeFromPath maps a path's extension (case-insensitive) to a FileType.
// Returns false for unsupported extensions.
func FileTypeFromPath(path string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FileTypePDF, true
	case ".docx":
		return FileTypeDOCX, true
	case ".txt":
		return FileTypeTXT, true
	case ".md", ".markdown":
		return FileTypeMarkdown, true
	default:
		return "", false
	}
}

// SourceDocument is an ingested file's metadata row in the relational store.
// Vector rows reference it by ID and never duplicate it.
type SourceDocument struct {
	// ID is the unique identifier (UUID).
	ID string

	// Title is the human-readable title.
	Title string

	// Content is the full reference text.
	Content string

	// Type is the file type tag.
	Type FileType

	// Source is the origin path or URL.
	Source string

	// AccessLevel is the minimum clearance needed to view the document.
	AccessLevel AccessLevel

	// Department owns the document. Empty for public documents.
	Department string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when ingestion committed.
	CreatedAt time.Time
}

// ParsedPage is one logical page or section produced by a parser.
type ParsedPage struct {
	// PageNumber is 1-based.
	PageNumber int

	// Content is the raw extracted text.
	Content string

	// Metadata holds page-level details (rotation, heading counts, ...).
	Metadata map[string]any
}

// ParsedDocument is the parser output for one file.
type ParsedDocument struct {
	Path     string
	FileType FileType

	// Pages holds the returned pages, which may exclude empty pages.
	Pages []ParsedPage

	// TotalPages is the page count before empty pages were dropped.
	TotalPages int

	// TotalCharacters counts runes across the returned pages.
	TotalCharacters int

	// Metadata holds document- and file-level details.
	Metadata map[string]any
}

// Title returns the metadata title, falling back to the file stem.
func (d *ParsedDocument) Title() string {
	if t, ok := d.Metadata["title"].(string); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	base := filepath.Base(d.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TextChunk is a bounded passage of document text.
type TextChunk struct {
	// Content is the passage text.
	Content string

	// ChunkIndex is the zero-based position within the source.
	ChunkIndex int

	// DocumentID references the originating document.
	DocumentID string

	// DocumentTitle is the originating document's title.
	DocumentTitle string

	// PageNumber is best-effort: the last page of the source.
	PageNumber *int
}
