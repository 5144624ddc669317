package driven

import "time"

// ConfigSource is the read side of the configuration. Keys are dotted
// paths into nested tables, such as "embedding.dimensions". Typed getters
// return the zero value when a key is missing or has another type.
type ConfigSource interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// GetDuration accepts Go duration strings and bare numbers of seconds.
	GetDuration(key string) time.Duration

	GetStringSlice(key string) []string
}

// ConfigStore is a persisted ConfigSource.
type ConfigStore interface {
	ConfigSource

	// Set stores a value and persists the file.
	Set(key string, value any) error

	// Keys lists every flattened key, sorted.
	Keys() []string

	// Save writes the current values back as nested tables.
	Save() error

	// Load re-reads the file, discarding unsaved values.
	Load() error

	// Path returns the file location.
	Path() string
}
