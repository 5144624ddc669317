package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// template is a built-in prompt and the number of %s verbs an override
// must keep.
type template struct {
	text  string
	verbs int
}

var builtinPrompts = map[string]template{
	driven.PromptAnswer: {text: driven.DefaultAnswerPrompt, verbs: 2},
}

const promptsReadme = "# docrag prompts\n\n" +
	"`answer.txt` is the prompt sent to the language model for every question.\n" +
	"Edits apply from the next command.\n\n" +
	"The file must keep exactly two `%s` verbs. The first receives the numbered\n" +
	"document excerpts and the second the question. A file that does not is\n" +
	"ignored and the built-in prompt is used.\n"

// PromptStore serves prompt templates from <dir>/<name>.txt. The directory
// is seeded with the built-in templates on the first Load, so the user has
// something to edit.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore returns a store rooted at dir, or ~/.docrag/prompts when
// dir is empty. It touches nothing on disk.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".docrag", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string { return s.dir }

// Load returns the template called name. An unreadable or malformed
// override falls back to the built-in; only names with no built-in fail.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	builtin, known := builtinPrompts[name]
	if s.seedErr != nil {
		if known {
			return builtin.text, nil
		}
		return "", fmt.Errorf("prompt directory: %w", s.seedErr)
	}

	text, err := s.read(name)
	if err == nil && known && strings.Count(text, "%s") != builtin.verbs {
		err = fmt.Errorf("prompt %q needs %d %%s verbs", name, builtin.verbs)
	}
	if err != nil {
		if known {
			return builtin.text, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.cache[name]; ok {
		return prev, nil
	}
	s.cache[name] = text
	return text, nil
}

// Reload forgets every cached template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.seedErr = err
		return
	}
	files := map[string]string{"README.md": promptsReadme}
	for name, t := range builtinPrompts {
		files[name+".txt"] = t.text
	}
	for file, content := range files {
		if err := writeIfMissing(filepath.Join(s.dir, file), content); err != nil {
			s.seedErr = err
			return
		}
	}
}

// read returns the file with trailing blank space collapsed to one newline.
func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), " \t\r\n") + "\n", nil
}

func writeIfMissing(path, content string) error {
	_, err := os.Stat(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o600)
}
