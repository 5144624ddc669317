package postprocessors

import (
	"errors"
	"testing"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined chunks.
type mockProcessor struct {
	name   string
	chunks []domain.TextChunk
	err    error
	gotID  string
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ *domain.ParsedDocument, documentID string, chunks []domain.TextChunk) ([]domain.TextChunk, error) {
	m.gotID = documentID
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		return m.chunks, nil
	}
	return chunks, nil
}

func testDoc() *domain.ParsedDocument {
	return &domain.ParsedDocument{
		Path:       "/docs/policy.txt",
		Pages:      []domain.ParsedPage{{PageNumber: 1, Content: "test content"}},
		TotalPages: 1,
	}
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.Len() != 0 {
		t.Errorf("expected 0 processors, got %d", p.Len())
	}
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "first"})
	p.Add(&mockProcessor{name: "second"})

	if p.Len() != 2 {
		t.Errorf("expected 2 processors, got %d", p.Len())
	}
	names := p.Names()
	if names[0] != "first" || names[1] != "second" {
		t.Errorf("unexpected order %v", names)
	}
}

func TestPipeline_ChunkDocument_NilDocument(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "chunker"})

	_, err := p.ChunkDocument(nil, "id")
	if !errors.Is(err, domain.ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestPipeline_ChunkDocument_EmptyPipeline(t *testing.T) {
	p := NewPipeline()

	_, err := p.ChunkDocument(testDoc(), "id")
	if !errors.Is(err, domain.ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent from empty pipeline, got %v", err)
	}
}

func TestPipeline_ChunkDocument_SingleProcessor(t *testing.T) {
	expected := []domain.TextChunk{{Content: "test", DocumentID: "id"}}
	proc := &mockProcessor{name: "chunker", chunks: expected}
	p := NewPipeline(proc)

	chunks, err := p.ChunkDocument(testDoc(), "/docs/policy.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != len(expected) {
		t.Errorf("expected %d chunks, got %d", len(expected), len(chunks))
	}
	if proc.gotID != "/docs/policy.txt" {
		t.Errorf("expected document id to be passed through, got %q", proc.gotID)
	}
}

func TestPipeline_ChunkDocument_MultipleProcessors(t *testing.T) {
	first := []domain.TextChunk{{Content: "first"}}
	second := []domain.TextChunk{{Content: "modified"}, {Content: "added", ChunkIndex: 1}}

	p := NewPipeline(
		&mockProcessor{name: "first", chunks: first},
		&mockProcessor{name: "second", chunks: second},
	)

	chunks, err := p.ChunkDocument(testDoc(), "id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != len(second) {
		t.Errorf("expected %d chunks, got %d", len(second), len(chunks))
	}
}

func TestPipeline_ChunkDocument_ProcessorError(t *testing.T) {
	expectedErr := errors.New("processor failed")

	p := NewPipeline(&mockProcessor{name: "failing", err: expectedErr})

	_, err := p.ChunkDocument(testDoc(), "id")
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}

func TestPipeline_ChunkDocument_EmptyContentNotWrapped(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "chunker", err: domain.ErrEmptyContent})

	_, err := p.ChunkDocument(testDoc(), "id")
	if err == nil || err.Error() != domain.ErrEmptyContent.Error() {
		t.Errorf("expected bare ErrEmptyContent, got %v", err)
	}
}

func TestPipeline_ChunkDocument_PassthroughProcessor(t *testing.T) {
	initial := []domain.TextChunk{{Content: "test"}}

	p := NewPipeline(
		&mockProcessor{name: "chunker", chunks: initial},
		&mockProcessor{name: "passthrough"}, // Returns received chunks unchanged
	)

	chunks, err := p.ChunkDocument(testDoc(), "id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != len(initial) {
		t.Errorf("expected %d chunks, got %d", len(initial), len(chunks))
	}
}
