package mcp

import (
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server exposes.
type Ports struct {
	// Answer answers questions. Required.
	Answer driving.AnswerService

	// Retrieval backs the search tool.
	Retrieval driving.RetrievalService

	// Indexing backs the index tool.
	Indexing driving.IndexingService

	// IndexRoots confines the index tool to files under these directories.
	// Empty allows any path the process can read.
	IndexRoots []string

	// Documents backs the document resources.
	Documents driving.DocumentService

	// History backs the feedback tool.
	History driving.HistoryService
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	return nil
}
