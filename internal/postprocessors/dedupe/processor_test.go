package dedupe

import (
	"testing"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

func TestProcessor_Name(t *testing.T) {
	if New(0).Name() != "dedupe" {
		t.Error("expected name 'dedupe'")
	}
}

func TestProcess_DropsRepeatsAndReindexes(t *testing.T) {
	chunks := []domain.TextChunk{
		{Content: "Page header", ChunkIndex: 0},
		{Content: "Annual leave is 15 days.", ChunkIndex: 1},
		{Content: "page   HEADER", ChunkIndex: 2},
		{Content: "Sick leave is 10 days.", ChunkIndex: 3},
	}

	out, err := New(0).Process(nil, "doc", chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(out))
	}
	for i, c := range out {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}
	if out[2].Content != "Sick leave is 10 days." {
		t.Errorf("unexpected last chunk %q", out[2].Content)
	}
	if chunks[3].ChunkIndex != 3 {
		t.Error("input chunks should not be modified")
	}
}

func TestProcess_ShortChunksKept(t *testing.T) {
	chunks := []domain.TextChunk{{Content: "Yes."}, {Content: "Yes."}}

	out, _ := New(10).Process(nil, "doc", chunks)
	if len(out) != 2 {
		t.Errorf("expected short repeats to be kept, got %d chunks", len(out))
	}
}
