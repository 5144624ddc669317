package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docrag/internal/connectors/filesystem"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/services"
	"github.com/custodia-labs/docrag/internal/logger"
)

var (
	indexLevel      string
	indexDepartment string
	indexTitle      string
	indexRetry      bool

	scanInclude   []string
	scanExclude   []string
	scanReconcile bool
	scanDryRun    bool

	watchDebounce time.Duration
	watchRescan   time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Index one or more documents",
	Long: `Parse, chunk, embed and index documents.

Each file is tagged with an access level and an owning department, which
decide who may retrieve its passages. Levels above public need a department.

Examples:
  docrag index handbook.pdf
  docrag index --access-level confidential --department HR salaries.docx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Remove a document and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		if !svc.Indexing.Delete(cmd.Context(), args[0]) {
			return fmt.Errorf("document %s: %w", args[0], domain.ErrNotFound)
		}
		cmd.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Index new and changed documents under a directory",
	Long: `Walk a directory and index every supported file that is new or whose
content changed since it was last indexed. Hidden files are skipped.

Patterns use doublestar syntax relative to the directory, e.g. "**/*.pdf".`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Keep a directory indexed as files change",
	Long: `Scan a directory once, then watch it and re-index files as they are
created, modified or removed. With --rescan the directory is also rescanned
and orphaned vectors reconciled on that interval.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	for _, c := range []*cobra.Command{indexCmd, scanCmd, watchCmd} {
		c.Flags().StringVar(&indexLevel, "access-level", "public", "access level: public, internal or confidential")
		c.Flags().StringVar(&indexDepartment, "department", "", "owning department")
	}
	indexCmd.Flags().StringVar(&indexTitle, "title", "", "override the parsed title (single file only)")
	indexCmd.Flags().BoolVar(&indexRetry, "retry", false, "retry transient failures with backoff")

	for _, c := range []*cobra.Command{scanCmd, watchCmd} {
		c.Flags().StringSliceVar(&scanInclude, "include", nil, "only index paths matching these patterns")
		c.Flags().StringSliceVar(&scanExclude, "exclude", nil, "skip paths matching these patterns")
	}
	scanCmd.Flags().BoolVar(&scanReconcile, "reconcile", false, "remove vectors whose document is gone")
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "report what would be indexed")

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", filesystem.DefaultDebounce, "quiet period before changes are applied")
	watchCmd.Flags().DurationVar(&watchRescan, "rescan", 0, "periodic rescan interval (0 disables)")

	rootCmd.AddCommand(indexCmd, deleteCmd, scanCmd, watchCmd)
}

func indexOptions() (domain.IndexOptions, error) {
	level, err := domain.ParseAccessLevel(indexLevel)
	if err != nil {
		return domain.IndexOptions{}, err
	}
	return domain.IndexOptions{AccessLevel: level, Department: indexDepartment}, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	opts, err := indexOptions()
	if err != nil {
		return err
	}
	if indexTitle != "" {
		if len(args) > 1 {
			return fmt.Errorf("%w: --title applies to a single file", domain.ErrInvalidInput)
		}
		opts.Title = indexTitle
	}

	var results []domain.IndexingResult
	if indexRetry {
		for _, path := range args {
			results = append(results, svc.Indexing.IndexWithRetry(cmd.Context(), path, opts))
		}
	} else {
		results = svc.Indexing.IndexBatch(cmd.Context(), args, opts)
	}

	if failed := newPrinter(cmd).indexing(results); failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

func newScanner(root string) (*filesystem.Scanner, error) {
	return filesystem.NewScanner(root,
		filesystem.WithInclude(scanInclude...),
		filesystem.WithExclude(scanExclude...),
		filesystem.WithSupported(svc.Supports),
		filesystem.WithLookup(svc.Lookup),
	)
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	opts, err := indexOptions()
	if err != nil {
		return err
	}
	scanner, err := newScanner(args[0])
	if err != nil {
		return err
	}

	res, err := scanner.Scan(cmd.Context())
	if err != nil {
		return err
	}

	p := newPrinter(cmd)
	if scanDryRun {
		for _, path := range res.New {
			p.printf("new      %s\n", path)
		}
		for _, path := range res.Changed {
			p.printf("changed  %s\n", path)
		}
		p.printf("%d new, %d changed, %d unchanged\n", len(res.New), len(res.Changed), len(res.Unchanged))
		return nil
	}

	report := filesystem.Sync(cmd.Context(), svc.Indexing, res, opts)
	p.indexing(report.Results)
	p.printf("%d indexed, %d failed, %d replaced, %d unchanged\n",
		report.Indexed, report.Failed, report.Removed, report.Unchanged)

	if scanReconcile {
		orphans, err := svc.Indexing.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		p.printf("%d orphaned documents removed from the index\n", len(orphans))
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d documents failed to index", report.Failed)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	opts, err := indexOptions()
	if err != nil {
		return err
	}
	scanner, err := newScanner(args[0])
	if err != nil {
		return err
	}

	p := newPrinter(cmd)
	rescan := func(ctx context.Context) (int, error) {
		res, err := scanner.Scan(ctx)
		if err != nil {
			return 0, err
		}
		report := filesystem.Sync(ctx, svc.Indexing, res, opts)
		if report.Indexed+report.Failed > 0 {
			p.indexing(report.Results)
		}
		return report.Indexed, nil
	}
	if _, err := rescan(cmd.Context()); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	watcher := filesystem.NewWatcher(scanner.Root(), watchDebounce, scanner.Match)
	defer watcher.Close()
	changes, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}
	p.printf("Watching %s\n", scanner.Root())

	if watchRescan > 0 {
		sched := services.NewScheduler(time.Second)
		sched.Add(services.Job{Name: "rescan", Interval: watchRescan, Run: rescan}, watchRescan)
		sched.Add(services.Job{Name: "reconcile", Interval: watchRescan, Run: func(ctx context.Context) (int, error) {
			orphans, err := svc.Indexing.Reconcile(ctx)
			return len(orphans), err
		}}, watchRescan)
		sched.OnResult(func(r services.JobResult) {
			if r.Err != nil {
				logger.Warn("%s failed: %v", r.Job, r.Err)
			}
		})
		defer func() { _ = sched.Stop() }()
		g.Go(func() error {
			return sched.Start(ctx)
		})
	}

	g.Go(func() error {
		for ch := range changes {
			res, err := filesystem.Apply(ctx, svc.Indexing, ch, opts)
			if err != nil {
				logger.Warn("%s %s: %v", ch.Type, logger.Mask(ch.Path), err)
				continue
			}
			if ch.Type == filesystem.ChangeRemove {
				p.printf("%s %s\n", p.render(p.warning, "removed"), ch.Path)
				continue
			}
			p.indexing([]domain.IndexingResult{res})
		}
		return ctx.Err()
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
