package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileTypeFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected FileType
		ok       bool
	}{
		{"/docs/report.pdf", FileTypePDF, true},
		{"/docs/REPORT.PDF", FileTypePDF, true},
		{"memo.docx", FileTypeDOCX, true},
		{"notes.txt", FileTypeTXT, true},
		{"readme.md", FileTypeMarkdown, true},
		{"guide.Markdown", FileTypeMarkdown, true},
		{"sheet.xlsx", "", false},
		{"noext", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ft, ok := FileTypeFromPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, ft)
		})
	}
}

func TestParsedDocument_Title(t *testing.T) {
	t.Run("metadata title", func(t *testing.T) {
		d := &ParsedDocument{Path: "/a/b.pdf", Metadata: map[string]any{"title": "  Leave Policy "}}
		assert.Equal(t, "Leave Policy", d.Title())
	})

	t.Run("falls back to file stem", func(t *testing.T) {
		d := &ParsedDocument{Path: "/a/vacation_rules.txt"}
		assert.Equal(t, "vacation_rules", d.Title())
	})

	t.Run("blank metadata title ignored", func(t *testing.T) {
		d := &ParsedDocument{Path: "/a/x.md", Metadata: map[string]any{"title": "   "}}
		assert.Equal(t, "x", d.Title())
	})
}
