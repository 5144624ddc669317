package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/logger"
)

// SourceLookup finds documents already recorded for a source path.
// driven.MetadataStore satisfies it.
type SourceLookup interface {
	FindBySource(ctx context.Context, source string) ([]domain.SourceDocument, error)
}

// Scanner walks a directory tree and selects files to index.
type Scanner struct {
	root     string
	include  []string
	exclude  []string
	supports func(path string) bool
	lookup   SourceLookup
	hash     func(path string) (string, error)
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithInclude keeps only files matching at least one pattern. Patterns
// are doublestar globs relative to the root, e.g. "policies/**/*.pdf".
func WithInclude(patterns ...string) ScannerOption {
	return func(s *Scanner) {
		s.include = append(s.include, patterns...)
	}
}

// WithExclude drops files matching any pattern.
func WithExclude(patterns ...string) ScannerOption {
	return func(s *Scanner) {
		s.exclude = append(s.exclude, patterns...)
	}
}

// WithSupported restricts the scan to paths the parser can handle.
func WithSupported(fn func(path string) bool) ScannerOption {
	return func(s *Scanner) {
		s.supports = fn
	}
}

// WithLookup enables change detection against recorded content hashes.
func WithLookup(l SourceLookup) ScannerOption {
	return func(s *Scanner) {
		s.lookup = l
	}
}

// NewScanner creates a scanner rooted at root. Invalid glob patterns are
// rejected.
func NewScanner(root string, opts ...ScannerOption) (*Scanner, error) {
	abs, err := filepath.Abs(LocalPath(root))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	s := &Scanner{root: abs, hash: HashFile}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range append(append([]string(nil), s.include...), s.exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: invalid glob %q", domain.ErrInvalidInput, p)
		}
	}
	return s, nil
}

// Root returns the absolute scan root.
func (s *Scanner) Root() string {
	return s.root
}

// ScanResult partitions the candidate files found by a scan. All paths
// are absolute.
type ScanResult struct {
	// New files have no recorded document.
	New []string

	// Changed files have recorded documents with a different content hash.
	// Their old documents must be removed before re-indexing.
	Changed []string

	// Unchanged files match their recorded hash.
	Unchanged []string
}

// Pending returns New and Changed, sorted.
func (r ScanResult) Pending() []string {
	out := make([]string, 0, len(r.New)+len(r.Changed))
	out = append(out, r.New...)
	out = append(out, r.Changed...)
	sort.Strings(out)
	return out
}

// Scan walks the tree. Hidden entries and symlinks are skipped. Without a
// lookup every candidate is reported as New.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult

	files, err := s.walk(ctx)
	if err != nil {
		return res, err
	}

	for _, path := range files {
		if s.lookup == nil {
			res.New = append(res.New, path)
			continue
		}
		docs, err := s.lookup.FindBySource(ctx, path)
		if err != nil {
			return res, fmt.Errorf("lookup %s: %w", path, err)
		}
		if len(docs) == 0 {
			res.New = append(res.New, path)
			continue
		}
		sum, err := s.hash(path)
		if err != nil {
			logger.Debug("hash %s: %v", logger.Mask(path), err)
			res.Changed = append(res.Changed, path)
			continue
		}
		if recordedHash(docs) == sum {
			res.Unchanged = append(res.Unchanged, path)
		} else {
			res.Changed = append(res.Changed, path)
		}
	}

	logger.Event("info", "scan.done", "root", logger.Mask(s.root),
		"new", len(res.New), "changed", len(res.Changed), "unchanged", len(res.Unchanged))
	return res, nil
}

// Match reports whether an absolute path under the root passes the
// include, exclude and extension filters.
func (s *Scanner) Match(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	if s.supports != nil && !s.supports(path) {
		return false
	}
	if len(s.include) > 0 && !matchAny(s.include, rel) {
		return false
	}
	return !matchAny(s.exclude, rel)
}

func (s *Scanner) walk(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			logger.Warn("scan: skipping %s: %v", logger.Mask(path), err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.Match(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, s.root)
		}
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	sort.Strings(files)
	return files, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func recordedHash(docs []domain.SourceDocument) string {
	for _, d := range docs {
		if h, ok := d.Metadata["content_hash"].(string); ok {
			return h
		}
	}
	return ""
}
