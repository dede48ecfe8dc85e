package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"refindex/internal/config"
	"refindex/internal/crawler"
	"refindex/internal/extractor"
	"refindex/internal/index"
	"refindex/internal/pipeline"
	"refindex/internal/storage"
	"refindex/internal/watch"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "refindex",
		Short:         "Index Rust declarations into a CSV reference table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfgPath    string
	outputPath string
	sqlitePath string
	verbose    bool

	scanFlags struct {
		exclude    []string
		extensions []string
		follow     bool
		workers    int
		since      string
	}
	findFile string
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "Path to the CSV index (default "+config.DefaultOutput+")")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "Path to a SQLite mirror of the index")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print every processed file")

	for _, cmd := range []*cobra.Command{scanCmd, rebuildCmd, watchCmd} {
		cmd.Flags().StringSliceVar(&scanFlags.exclude, "exclude", nil, "Path segment names to skip (default target)")
		cmd.Flags().StringSliceVar(&scanFlags.extensions, "ext", nil, "File extensions to index (default .rs)")
		cmd.Flags().BoolVar(&scanFlags.follow, "follow-symlinks", true, "Descend into symlinked directories")
		cmd.Flags().IntVarP(&scanFlags.workers, "workers", "j", 0, "Number of files parsed concurrently (default: CPU count)")
	}
	findCmd.Flags().StringVar(&findFile, "file", "", "List the declarations recorded for this file path")
	scanCmd.Flags().StringVar(&scanFlags.since, "since", "", "Only re-scan files changed against this git ref")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(findCmd)
}

// loadConfig merges the config file with flags that were set explicitly.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if len(args) > 0 {
		cfg.Project.Root = args[0]
	}
	if outputPath != "" {
		cfg.Index.Output = outputPath
	}
	if sqlitePath != "" {
		cfg.Index.SQLite = sqlitePath
	}

	flags := cmd.Flags()
	if flags.Lookup("exclude") != nil && flags.Changed("exclude") {
		cfg.Project.Exclude = scanFlags.exclude
	}
	if flags.Lookup("ext") != nil && flags.Changed("ext") {
		cfg.Project.Extensions = scanFlags.extensions
	}
	if flags.Lookup("follow-symlinks") != nil && flags.Changed("follow-symlinks") {
		follow := scanFlags.follow
		cfg.Project.FollowSymlinks = &follow
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") && scanFlags.workers > 0 {
		cfg.Scan.Workers = scanFlags.workers
	}
	return cfg, nil
}

func newPipeline(cfg *config.Config, mode index.Mode, since string) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Options{
		Root:    cfg.Project.Root,
		Output:  cfg.Index.Output,
		Mode:    mode,
		Workers: cfg.Scan.Workers,
		Crawler: crawler.Options{
			Extensions:     cfg.Project.Extensions,
			Exclude:        cfg.Project.Exclude,
			FollowSymlinks: cfg.Follow(),
		},
		Since:   since,
		SQLite:  cfg.Index.SQLite,
		Verbose: verbose,
	}, os.Stdout, log.New(os.Stderr, "", log.LstdFlags))
}

func runOnce(cmd *cobra.Command, args []string, mode index.Mode, since string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, mode, since)
	if err != nil {
		return err
	}
	_, err = p.Run(cmd.Context())
	return err
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan the project and merge new declarations into the index",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, args, index.Incremental, scanFlags.since)
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [path]",
	Short: "Regenerate the index from scratch, discarding the existing table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, args, index.Full, "")
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Scan once, then keep the index updated as files change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg, index.Incremental, "")
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := watch.New(p, cfg.Watch.Debounce, log.New(os.Stderr, "", log.LstdFlags))
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		fmt.Printf("👀 Watching %s (Ctrl+C to stop)\n", cfg.Project.Root)
		return w.Run(ctx)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Mirror the CSV index into a SQLite database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		if cfg.Index.SQLite == "" {
			return fmt.Errorf("no SQLite path configured; pass --sqlite")
		}

		set, found, err := index.Load(cfg.Index.Output)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no index found at %s; run `refindex scan` first", cfg.Index.Output)
		}

		entries := set.Sorted()
		if err := pipeline.Mirror(cmd.Context(), cfg.Index.SQLite, entries); err != nil {
			return err
		}
		fmt.Printf("🗄️  Mirrored %d entries into %s\n", len(entries), cfg.Index.SQLite)
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find [name]",
	Short: "Search the SQLite mirror by name substring or by file",
	Long: `Search the SQLite mirror. With <name>, list declarations whose name
contains it. With --file, list the declarations recorded for that file.
With neither, list the whole mirror.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && findFile != "" {
			return fmt.Errorf("pass either <name> or --file, not both")
		}

		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		if cfg.Index.SQLite == "" {
			return fmt.Errorf("no SQLite path configured; pass --sqlite")
		}
		if _, err := os.Stat(cfg.Index.SQLite); err != nil {
			return fmt.Errorf("failed to open sqlite mirror: %w", err)
		}

		store, err := storage.NewSQLiteStore(cfg.Index.SQLite)
		if err != nil {
			return err
		}
		defer store.Close()

		var entries []extractor.Entry
		switch {
		case findFile != "":
			entries, err = store.FindByFile(cmd.Context(), findFile)
		case len(args) > 0:
			entries, err = store.FindByName(cmd.Context(), args[0])
		default:
			entries, err = store.LoadEntries(cmd.Context())
		}
		if err != nil {
			return err
		}

		w := storage.NewTableWriter(cmd.OutOrStdout())
		for _, e := range entries {
			if err := w.WriteRow(storage.Row{e.File, e.Kind.String(), e.Name}); err != nil {
				return err
			}
		}
		return w.Close()
	},
}
