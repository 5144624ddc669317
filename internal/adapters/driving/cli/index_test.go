package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

func TestIndexCmd(t *testing.T) {
	env := setupTestServices(t)

	out, err := execute(t, "index", "--access-level", "confidential", "--department", "HR", "a.pdf", "b.md")

	require.NoError(t, err)
	require.Len(t, env.indexer.batches, 1)
	assert.Equal(t, []string{"a.pdf", "b.md"}, env.indexer.batches[0])
	assert.Equal(t, domain.IndexOptions{AccessLevel: domain.AccessConfidential, Department: "HR"}, env.indexer.lastOpts)
	assert.Contains(t, out, "indexed a.pdf")
	assert.Contains(t, out, "doc-b.md 2 chunks")
}

func TestIndexCmd_Retry(t *testing.T) {
	env := setupTestServices(t)

	_, err := execute(t, "index", "--retry", "--title", "Handbook", "handbook.docx")

	require.NoError(t, err)
	assert.Equal(t, []string{"handbook.docx"}, env.indexer.retried)
	assert.Empty(t, env.indexer.batches)
	assert.Equal(t, "Handbook", env.indexer.lastOpts.Title)
	assert.Equal(t, domain.AccessPublic, env.indexer.lastOpts.AccessLevel)
}

func TestIndexCmd_Failures(t *testing.T) {
	env := setupTestServices(t)
	env.indexer.results = map[string]domain.IndexingResult{
		"bad.pdf": {FilePath: "bad.pdf", Error: "corrupted document"},
	}

	out, err := execute(t, "index", "good.txt", "bad.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
	assert.Contains(t, out, "failed bad.pdf: corrupted document")
}

func TestIndexCmd_InvalidFlags(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "index", "--access-level", "secret", "a.pdf")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = execute(t, "index", "--title", "T", "a.pdf", "b.pdf")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "index")
	assert.Error(t, err)
}

func TestDeleteCmd(t *testing.T) {
	env := setupTestServices(t)

	out, err := execute(t, "delete", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted doc-1")
	assert.Equal(t, []string{"doc-1"}, env.indexer.deleted)

	env.indexer.missing = true
	_, err = execute(t, "delete", "doc-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}

func TestScanCmd(t *testing.T) {
	env := setupTestServices(t)
	root := writeTree(t, map[string]string{
		"policy.md":         "# Leave",
		"hr/salaries.txt":   "bands",
		"drafts/notes.txt":  "draft",
		"logo.png":          "binary",
		".hidden/secret.md": "hidden",
	})

	out, err := execute(t, "scan", root, "--exclude", "drafts/**", "--access-level", "internal", "--department", "HR")

	require.NoError(t, err)
	require.Len(t, env.indexer.batches, 1)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "policy.md"),
		filepath.Join(root, "hr", "salaries.txt"),
	}, env.indexer.batches[0])
	assert.Equal(t, domain.AccessInternal, env.indexer.lastOpts.AccessLevel)
	assert.Contains(t, out, "2 indexed, 0 failed")
	assert.Zero(t, env.indexer.reconcile)
}

func TestScanCmd_DryRunAndReconcile(t *testing.T) {
	env := setupTestServices(t)
	root := writeTree(t, map[string]string{"a.md": "a"})

	out, err := execute(t, "scan", "--dry-run", root)
	require.NoError(t, err)
	assert.Contains(t, out, "new      "+filepath.Join(root, "a.md"))
	assert.Contains(t, out, "1 new, 0 changed, 0 unchanged")
	assert.Empty(t, env.indexer.batches)

	env.indexer.orphans = []string{"gone-1"}
	out, err = execute(t, "scan", "--reconcile", root)
	require.NoError(t, err)
	assert.Equal(t, 1, env.indexer.reconcile)
	assert.Contains(t, out, "1 orphaned documents removed")
}

func TestScanCmd_Errors(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "scan", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = execute(t, "scan", "--include", "[", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
