// Package filecheck holds the validation and decoding steps shared by the
// document parsers.
package filecheck

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/logger"
)

const bytesPerMB = 1024 * 1024

// sniffLen is the number of bytes net/http inspects.
const sniffLen = 512

// Rules describes what a parser accepts.
type Rules struct {
	// Extensions are lower-case and include the dot.
	Extensions []string

	// MIMEPrefixes are the acceptable sniffed content types. A mismatch
	// is logged, not rejected.
	MIMEPrefixes []string

	// MaxFileSizeMB is the size ceiling. Zero means 100.
	MaxFileSizeMB int
}

// File is a validated file read fully into memory.
type File struct {
	Path string
	Info fs.FileInfo
	Data []byte
}

// Load validates path against r and reads it. The checks run in a fixed
// order: existence, extension, content sniff, size, then read.
func Load(path string, r Rules) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrCorrupted, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrUnsupportedType, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(r.Extensions, ext) {
		return nil, fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedType, ext, strings.Join(r.Extensions, ", "))
	}

	sniff(path, r.MIMEPrefixes)

	limitMB := r.MaxFileSizeMB
	if limitMB <= 0 {
		limitMB = 100
	}
	if limit := int64(limitMB) * bytesPerMB; info.Size() > limit {
		return nil, &domain.SizeLimitError{ActualBytes: info.Size(), LimitBytes: limit}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrCorrupted, path, err)
	}
	return &File{Path: path, Info: info, Data: data}, nil
}

// sniff logs a warning when the content type disagrees with the extension.
func sniff(path string, prefixes []string) {
	if len(prefixes) == 0 {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("content sniff skipped for %s: %v", path, err)
		return
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		logger.Warn("content sniff skipped for %s: %v", path, err)
		return
	}
	if n == 0 {
		return
	}

	mime := http.DetectContentType(head[:n])
	for _, p := range prefixes {
		if strings.HasPrefix(mime, p) {
			return
		}
	}
	logger.Warn("content type %q of %s does not match its extension; continuing", mime, path)
}

// Metadata returns the file-level metadata common to every format.
func (f *File) Metadata(content string) map[string]any {
	return map[string]any{
		"file_name":       filepath.Base(f.Path),
		"file_size_bytes": f.Info.Size(),
		"modified":        f.Info.ModTime().UTC().Format(time.RFC3339),
		"line_count":      LineCount(content),
		"word_count":      len(strings.Fields(content)),
	}
}

// LineCount counts lines the way a text editor does: a trailing newline
// does not start a new line and empty text has none.
func LineCount(s string) int {
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
