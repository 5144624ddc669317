// Package connectors provides sources of documents to index. The only
// source is the local filesystem: a directory scanner for bulk ingest and
// a watcher for incremental updates.
package connectors
