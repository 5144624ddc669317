package filesystem

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Indexer is the part of the indexing orchestrator a sync drives.
type Indexer interface {
	IndexBatch(ctx context.Context, paths []string, opts domain.IndexOptions) []domain.IndexingResult
	DeleteBySource(ctx context.Context, source string) (int, error)
}

// SyncReport summarises a sync run.
type SyncReport struct {
	Indexed   int
	Failed    int
	Removed   int
	Unchanged int
	Results   []domain.IndexingResult
}

// Sync removes stale documents for changed files and indexes every
// pending file with opts.
func Sync(ctx context.Context, ix Indexer, res ScanResult, opts domain.IndexOptions) SyncReport {
	report := SyncReport{Unchanged: len(res.Unchanged)}

	for _, path := range res.Changed {
		n, err := ix.DeleteBySource(ctx, path)
		if err != nil {
			logger.Warn("sync: removing stale documents for %s: %v", logger.Mask(path), err)
			continue
		}
		report.Removed += n
	}

	pending := res.Pending()
	if len(pending) == 0 {
		return report
	}
	report.Results = ix.IndexBatch(ctx, pending, opts)
	for _, r := range report.Results {
		if r.Success {
			report.Indexed++
		} else {
			report.Failed++
		}
	}
	return report
}

// Apply handles one watcher change: upserts re-index the file after
// removing its previous documents, removals delete them.
func Apply(ctx context.Context, ix Indexer, ch Change, opts domain.IndexOptions) (domain.IndexingResult, error) {
	removed, err := ix.DeleteBySource(ctx, ch.Path)
	if err != nil {
		return domain.IndexingResult{FilePath: ch.Path}, err
	}
	if ch.Type == ChangeRemove {
		logger.Event("info", "watch.removed", "path", logger.Mask(ch.Path), "documents", removed)
		return domain.IndexingResult{FilePath: ch.Path, Success: true}, nil
	}
	results := ix.IndexBatch(ctx, []string{ch.Path}, opts)
	return results[0], nil
}
