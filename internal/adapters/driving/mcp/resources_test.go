package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid document URI", "docrag://documents/doc-456", "doc-456"},
		{"invalid prefix", "file://documents/doc-456", ""},
		{"nested path", "docrag://documents/doc-456/extra", ""},
		{"empty URI", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractDocumentID(tt.uri))
		})
	}
}

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("lists public documents only", func(t *testing.T) {
		docs := &mockDocumentService{documents: []domain.SourceDocument{
			{ID: "doc-1", Title: "Handbook", Type: domain.FileTypePDF, Source: "/srv/handbooks/hr/leave.pdf",
				AccessLevel: domain.AccessPublic, CreatedAt: time.Now()},
			{ID: "doc-2", Title: "Salaries", Type: domain.FileTypeDOCX, AccessLevel: domain.AccessConfidential, Department: "HR"},
			{ID: "doc-3", Title: "Runbook", Type: domain.FileTypeTXT, AccessLevel: domain.AccessInternal, Department: "Engineering"},
		}}
		server := newTestServer(t, &Ports{Documents: docs})

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docrag://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		text := result.Contents[0].Text
		assert.Contains(t, text, "doc-1")
		assert.Contains(t, text, `"access_level": 1`)
		assert.NotContains(t, text, "doc-2")
		assert.NotContains(t, text, "Salaries")
		assert.NotContains(t, text, "doc-3")
		assert.NotContains(t, text, "Engineering")
		assert.NotContains(t, text, "/srv/handbooks")
		assert.Contains(t, text, `"source": "[path]"`)
	})

	t.Run("restricted only lists nothing", func(t *testing.T) {
		docs := &mockDocumentService{documents: []domain.SourceDocument{
			{ID: "doc-2", Title: "Salaries", AccessLevel: domain.AccessConfidential, Department: "HR"},
		}}
		server := newTestServer(t, &Ports{Documents: docs})

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docrag://documents"))

		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("empty list", func(t *testing.T) {
		server := newTestServer(t, &Ports{Documents: &mockDocumentService{documents: []domain.SourceDocument{}}})

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docrag://documents"))

		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("list failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Documents: &mockDocumentService{err: errors.New("storage error")}})

		_, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docrag://documents"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing documents")
	})
}

func TestServer_handleDocumentContentResource(t *testing.T) {
	ctx := context.Background()

	t.Run("public content", func(t *testing.T) {
		docs := &mockDocumentService{document: &domain.SourceDocument{
			ID: "doc-1", AccessLevel: domain.AccessPublic, Content: "# Handbook\n\nWelcome.",
		}}
		server := newTestServer(t, &Ports{Documents: docs})

		result, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docrag://documents/doc-1"))

		require.NoError(t, err)
		assert.Equal(t, "# Handbook\n\nWelcome.", result.Contents[0].Text)
		assert.Equal(t, "text/plain", result.Contents[0].MIMEType)
	})

	t.Run("restricted content is not found", func(t *testing.T) {
		docs := &mockDocumentService{document: &domain.SourceDocument{
			ID: "doc-2", AccessLevel: domain.AccessInternal, Department: "HR", Content: "secret",
		}}
		server := newTestServer(t, &Ports{Documents: docs})

		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docrag://documents/doc-2"))
		require.Error(t, err)
	})

	t.Run("missing document", func(t *testing.T) {
		server := newTestServer(t, &Ports{Documents: &mockDocumentService{err: domain.ErrNotFound}})

		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docrag://documents/nope"))
		require.Error(t, err)
	})

	t.Run("invalid URI", func(t *testing.T) {
		server := newTestServer(t, &Ports{Documents: &mockDocumentService{}})

		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docrag://invalid/uri"))
		require.Error(t, err)
	})

	t.Run("storage failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Documents: &mockDocumentService{err: errors.New("disk")}})

		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docrag://documents/doc-1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting document")
	})
}
