// Package postprocessors assembles the chunking stage of indexing: a
// chunker followed by optional processors that rewrite its output.
package postprocessors

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var _ driven.Chunker = (*Pipeline)(nil)

// Pipeline runs its processors in order, each receiving the previous
// output. The first one gets nil and is expected to produce the chunks.
type Pipeline struct {
	stages []driven.PostProcessor
}

// NewPipeline returns a pipeline running stages in the given order.
func NewPipeline(stages ...driven.PostProcessor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Add appends a stage.
func (p *Pipeline) Add(stage driven.PostProcessor) {
	p.stages = append(p.stages, stage)
}

func (p *Pipeline) Len() int { return len(p.stages) }

// Names lists the stages in run order.
func (p *Pipeline) Names() []string {
	out := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		out = append(out, s.Name())
	}
	return out
}

// ChunkDocument implements driven.Chunker. domain.ErrEmptyContent from any
// stage, or an empty final result, is returned unwrapped so the indexer can
// report it as such; other failures name the stage.
func (p *Pipeline) ChunkDocument(doc *domain.ParsedDocument, documentID string) ([]domain.TextChunk, error) {
	if doc == nil {
		return nil, domain.ErrEmptyContent
	}

	var chunks []domain.TextChunk
	for _, stage := range p.stages {
		out, err := stage.Process(doc, documentID, chunks)
		switch {
		case errors.Is(err, domain.ErrEmptyContent):
			return nil, err
		case err != nil:
			return nil, fmt.Errorf("chunk processor %s: %w", stage.Name(), err)
		}
		chunks = out
	}

	if len(chunks) == 0 {
		return nil, domain.ErrEmptyContent
	}
	return chunks, nil
}
