package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"time"

	"refindex/internal/crawler"
	"refindex/internal/extractor"
	"refindex/internal/git"
	"refindex/internal/index"
	"refindex/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Options configures one indexing run.
type Options struct {
	Root    string
	Output  string
	Mode    index.Mode
	Workers int
	Crawler crawler.Options

	// Since restricts an incremental run to files changed against this git ref.
	Since string
	// Only restricts an incremental run to these paths. Nil means every file.
	Only []string

	SQLite  string // mirror the written index here when set
	Verbose bool
}

// Report tallies one run.
type Report struct {
	FilesScanned    int
	FilesFailed     int
	TraversalErrors int
	EntriesFound    int
	Index           *index.Result
	Elapsed         time.Duration
}

// Pipeline runs scan -> extract -> reconcile -> persist.
type Pipeline struct {
	opts    Options
	ext     *extractor.Extractor
	crawler *crawler.Crawler
	out     io.Writer
	logger  *log.Logger
}

// New validates opts and builds a pipeline. Status lines go to out,
// per-file warnings to logger.
func New(opts Options, out io.Writer, logger *log.Logger) (*Pipeline, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Output == "" {
		return nil, errors.New("output path is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Mode == index.Full && (opts.Only != nil || opts.Since != "") {
		return nil, errors.New("a full rebuild cannot be restricted to changed files")
	}

	ext, err := extractor.NewExtractor("rust")
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		opts:    opts,
		ext:     ext,
		crawler: crawler.NewCrawler(opts.Crawler),
		out:     out,
		logger:  logger,
	}, nil
}

// Restrict returns an incremental copy of p that only re-scans paths.
func (p *Pipeline) Restrict(paths []string) *Pipeline {
	cp := *p
	cp.opts.Mode = index.Incremental
	cp.opts.Since = ""
	cp.opts.Only = append([]string{}, paths...)
	return &cp
}

// Root is the directory this pipeline scans.
func (p *Pipeline) Root() string {
	return p.opts.Root
}

// Crawler exposes the traversal policy so watchers can mirror it.
func (p *Pipeline) Crawler() *crawler.Crawler {
	return p.crawler
}

// Run executes the pipeline. Per-file failures are reported and skipped;
// traversal of the root, loading the prior index and writing the new one
// are fatal.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	only, err := p.selectionStage()
	if err != nil {
		return nil, err
	}

	acc, err := p.scanStage(ctx, only)
	if err != nil {
		return nil, err
	}

	res, err := p.reconcileStage(acc.entries)
	if err != nil {
		return nil, err
	}

	if err := p.mirrorStage(ctx, res.Entries); err != nil {
		return nil, err
	}

	report := &Report{
		FilesScanned:    acc.scanned,
		FilesFailed:     acc.failed,
		TraversalErrors: acc.traversalErrors,
		EntriesFound:    len(acc.entries),
		Index:           res,
		Elapsed:         time.Since(start),
	}
	p.printSummary(report)
	return report, nil
}

// selectionStage resolves Only and Since into a lookup set; nil means all.
func (p *Pipeline) selectionStage() (map[string]struct{}, error) {
	paths := p.opts.Only
	if p.opts.Since != "" {
		changed, err := git.ChangedFiles(p.opts.Root, p.opts.Since)
		if err != nil {
			return nil, fmt.Errorf("failed to get git changes: %w", err)
		}
		fmt.Fprintf(p.out, "📝 Detected %d changed files since %s.\n", len(changed), p.opts.Since)
		paths = append(paths, changed...)
		if paths == nil {
			paths = []string{}
		}
	}
	if paths == nil {
		return nil, nil
	}

	only := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		only[filepath.Clean(path)] = struct{}{}
	}
	return only, nil
}

func (p *Pipeline) scanStage(ctx context.Context, only map[string]struct{}) (*collector, error) {
	fmt.Fprintf(p.out, "📂 Scanning directory: %s\n", p.opts.Root)

	acc := &collector{out: p.out, logger: p.logger, verbose: p.opts.Verbose}

	g := new(errgroup.Group)
	g.SetLimit(p.opts.Workers)

	walkErr := p.crawler.ScanProject(p.opts.Root, func(path string) {
		if only != nil {
			if _, ok := only[filepath.Clean(path)]; !ok {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		acc.processing(path)
		g.Go(func() error {
			entries, err := p.ext.ExtractFromFile(path)
			if err != nil {
				acc.fail(path, err)
				return nil
			}
			acc.add(path, entries)
			return nil
		})
	}, acc.traversalError)

	_ = g.Wait()

	if walkErr != nil {
		return nil, walkErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}
	return acc, nil
}

func (p *Pipeline) reconcileStage(fresh []extractor.Entry) (*index.Result, error) {
	res, err := index.NewReconciler(p.opts.Output).Run(fresh, p.opts.Mode)
	if err != nil {
		return nil, err
	}

	switch {
	case p.opts.Mode == index.Full:
		fmt.Fprintln(p.out, "🧹 Full rebuild; existing CSV ignored.")
	case res.PriorFound:
		fmt.Fprintf(p.out, "CSV exists. Read %d existing entries.\n", res.Prior)
	default:
		fmt.Fprintln(p.out, "No existing CSV found; starting fresh.")
	}
	return res, nil
}

func (p *Pipeline) mirrorStage(ctx context.Context, entries []extractor.Entry) error {
	if p.opts.SQLite == "" {
		return nil
	}
	if err := Mirror(ctx, p.opts.SQLite, entries); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "🗄️  Mirrored %d entries into %s\n", len(entries), p.opts.SQLite)
	return nil
}

// Mirror replaces the SQLite snapshot at dbPath with entries.
func Mirror(ctx context.Context, dbPath string, entries []extractor.Entry) error {
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open sqlite mirror %s: %w", dbPath, err)
	}
	defer store.Close()

	if err := store.SaveEntries(ctx, entries); err != nil {
		return fmt.Errorf("failed to mirror index into %s: %w", dbPath, err)
	}
	return nil
}

func (p *Pipeline) printSummary(r *Report) {
	fmt.Fprintf(p.out, "📊 Files: %d processed, %d failed, %d skipped by traversal errors.\n",
		r.FilesScanned, r.FilesFailed, r.TraversalErrors)
	fmt.Fprintf(p.out, "  -> Entries: %d found, %d new, %d total.\n",
		r.EntriesFound, r.Index.Added, r.Index.Written)
	fmt.Fprintf(p.out, "✅ Done! Updated/Merged CSV file at: %s (%v)\n", r.Index.Path, r.Elapsed.Round(time.Millisecond))
}
