// Package logger provides levelled, structured logging for docrag.
// Debug and Info messages are printed only in verbose mode; warnings and
// errors are always written. Events carry key=value fields so indexing and
// query stages can be correlated in log pipelines.
package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	now               = time.Now
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	write(true, "DEBUG", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	write(true, "INFO", format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	write(false, "WARN", format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	write(false, "ERROR", format, args...)
}

func write(verboseOnly bool, level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verboseOnly && !verbose {
		return
	}
	fmt.Fprintf(output, "["+level+"] "+format+"\n", args...)
}

// Event writes a structured event line: ts, level, event name and sorted
// key=value fields. kv must alternate string keys and values; a trailing
// key without a value is recorded as "(missing)". Events at debug or info
// level are only written in verbose mode.
func Event(level, name string, kv ...any) {
	level = strings.ToUpper(level)
	mu.RLock()
	defer mu.RUnlock()
	if (level == "DEBUG" || level == "INFO") && !verbose {
		return
	}
	fmt.Fprintln(output, formatEvent(now(), level, name, kv))
}

func formatEvent(ts time.Time, level, name string, kv []any) string {
	fields := make(map[string]string, len(kv)/2+1)
	keys := make([]string, 0, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		val := "(missing)"
		if i+1 < len(kv) {
			val = fmt.Sprint(kv[i+1])
		}
		if _, seen := fields[key]; !seen {
			keys = append(keys, key)
		}
		fields[key] = val
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("ts=")
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteString(" level=")
	b.WriteString(level)
	b.WriteString(" event=")
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quote(fields[k]))
	}
	return b.String()
}

func quote(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		return fmt.Sprintf("%q", v)
	}
	return v
}

var (
	urlCredentials = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s]+@`)
	apiKeys        = regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{8,}|api[_-]?key[=:]\s*\S+|password[=:]\s*\S+)`)
	absPaths       = regexp.MustCompile(`(?:/[A-Za-z0-9._-]+){2,}`)
	ipv4           = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b`)
)

// Mask removes credentials, API keys, absolute paths and IP addresses from
// text that may be shown outside the process.
func Mask(s string) string {
	s = urlCredentials.ReplaceAllString(s, "${1}***@")
	s = apiKeys.ReplaceAllString(s, "***")
	s = absPaths.ReplaceAllString(s, "[path]")
	s = ipv4.ReplaceAllString(s, "[addr]")
	return s
}
