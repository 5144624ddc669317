package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docrag/internal/logger"
)

// DefaultDebounce is how long a path must be quiet before its change is
// emitted.
const DefaultDebounce = 500 * time.Millisecond

// ChangeType classifies a filesystem change.
type ChangeType int

const (
	// ChangeUpsert means the file was created or written.
	ChangeUpsert ChangeType = iota
	// ChangeRemove means the file was removed or renamed away.
	ChangeRemove
)

func (t ChangeType) String() string {
	if t == ChangeRemove {
		return "remove"
	}
	return "upsert"
}

// Change is a debounced change to one file.
type Change struct {
	Type ChangeType
	Path string
}

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("watcher closed")

// Watcher reports changes under a directory tree.
type Watcher struct {
	root     string
	debounce time.Duration
	match    func(path string) bool

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	closed bool
}

// NewWatcher creates a watcher for root. match filters file paths and may
// be nil; Scanner.Match is the usual choice.
func NewWatcher(root string, debounce time.Duration, match func(path string) bool) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	root = LocalPath(root)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Watcher{root: root, debounce: debounce, match: match}
}

// Watch starts watching and returns a channel of changes. The channel is
// closed when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWatcherClosed
	}
	if w.fsw != nil {
		return nil, fmt.Errorf("watcher already started")
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := addTree(fsw, w.root); err != nil {
		fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	out := make(chan Change)
	go w.loop(ctx, fsw, out)
	return out, nil
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Change) {
	defer close(out)
	defer w.Close()

	pending := make(map[string]ChangeType)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, ev, pending)
			if len(pending) > 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch: %v", err)

		case <-timer.C:
			for _, ch := range drain(pending) {
				select {
				case out <- ch:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event, pending map[string]ChangeType) {
	path := ev.Name
	if hidden(w.root, path) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			if err := addTree(fsw, path); err != nil {
				logger.Warn("watch: %v", err)
			}
			return
		}
	}

	if w.match != nil && !w.match(path) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		pending[path] = ChangeRemove
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		pending[path] = ChangeUpsert
	}
}

// drain empties pending and returns its changes sorted by path.
func drain(pending map[string]ChangeType) []Change {
	out := make([]Change, 0, len(pending))
	for path, t := range pending {
		out = append(out, Change{Type: t, Path: path})
		delete(pending, path)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// addTree watches dir and every non-hidden directory below it.
func addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
