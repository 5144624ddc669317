// Package filesystem discovers documents under a directory tree and
// watches it for changes.
//
// Scanner walks the tree once and reports the files that need indexing,
// skipping files whose content hash matches what is already recorded.
// Watcher turns fsnotify events into debounced Change values.
package filesystem
