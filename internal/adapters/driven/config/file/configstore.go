package file

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps <dir>/config.toml in memory as a flat map. Tables are
// addressed with dotted keys, so [llm] model = "x" reads as "llm.model".
// Getters return the zero value for missing keys and for values of the
// wrong type.
type ConfigStore struct {
	path string

	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore creates dir (default ~/.docrag) and loads config.toml
// from it when present.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".docrag")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	s := &ConfigStore{path: filepath.Join(dir, "config.toml"), values: map[string]any{}}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *ConfigStore) Path() string { return s.path }

// Get returns the raw decoded value.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

func (s *ConfigStore) GetBool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// GetInt truncates floats and parses numeric strings.
func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	if str, ok := v.(string); ok {
		n, _ := strconv.Atoi(strings.TrimSpace(str))
		return n
	}
	f, _ := number(v)
	return int(f)
}

// GetFloat widens integers and parses numeric strings.
func (s *ConfigStore) GetFloat(key string) float64 {
	v, _ := s.Get(key)
	if str, ok := v.(string); ok {
		f, _ := strconv.ParseFloat(strings.TrimSpace(str), 64)
		return f
	}
	f, _ := number(v)
	return f
}

// GetDuration accepts "45s" style strings, or a number of seconds given
// either as a number or as a string.
func (s *ConfigStore) GetDuration(key string) time.Duration {
	v, _ := s.Get(key)
	if str, ok := v.(string); ok {
		return parseDuration(str)
	}
	f, ok := number(v)
	if !ok {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// GetStringSlice drops non-string elements of a TOML array.
func (s *ConfigStore) GetStringSlice(key string) []string {
	v, _ := s.Get(key)
	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Keys returns the dotted keys currently set, sorted.
func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Set stores value under key and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.write()
}

// Save rewrites the file from memory.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write()
}

// Load replaces the in-memory values with the file contents. A missing
// file leaves the store empty.
func (s *ConfigStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = nil, nil
	}
	if err != nil {
		return err
	}

	tree := map[string]any{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}

	flat := map[string]any{}
	flatten(flat, "", tree)

	s.mu.Lock()
	s.values = flat
	s.mu.Unlock()
	return nil
}

// write marshals the values as nested tables. The caller holds mu.
func (s *ConfigStore) write() error {
	data, err := toml.Marshal(unflattenMap(s.values))
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func flatten(dst map[string]any, prefix string, tree map[string]any) {
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		if table, ok := v.(map[string]any); ok {
			flatten(dst, k, table)
			continue
		}
		dst[k] = v
	}
}

// unflattenMap rebuilds nested tables from dotted keys. When a key is both
// a value and the prefix of another key, the value wins.
func unflattenMap(flat map[string]any) map[string]any {
	root := map[string]any{}
	for key, value := range flat {
		parts := strings.Split(key, ".")
		leaf := parts[len(parts)-1]
		node := root
		for _, part := range parts[:len(parts)-1] {
			next, isTable := node[part].(map[string]any)
			if !isTable {
				if _, taken := node[part]; taken {
					node = nil
					break
				}
				next = map[string]any{}
				node[part] = next
			}
			node = next
		}
		if node != nil {
			node[leaf] = value
		}
	}
	return root
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func parseDuration(v string) time.Duration {
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return 0
}
