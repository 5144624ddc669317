// Package mcp provides an MCP (Model Context Protocol) server adapter for docrag.
// It lets AI assistants ask questions over the permissioned corpus, retrieve
// passages and index files.
package mcp

import "errors"

// ErrMissingAnswerService is returned when the answer service is not provided.
var ErrMissingAnswerService = errors.New("mcp: answer service is required")
