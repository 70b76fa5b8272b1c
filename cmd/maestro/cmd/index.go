package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maestro-ai/maestro/internal/indexer"
)

var indexWatch bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Synchronize the context index with the working tree",
	Long: `index runs one incremental pass over the configured root:
new and changed files are chunked and embedded, deleted files are
removed from the index. With --watch it keeps running and reindexes
on filesystem changes.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexWatch, "watch", false,
		"keep watching the root after the initial pass")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	s, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inc := buildIncremental(cfg, s, logger)
	result, err := inc.Sync(ctx, func(p indexer.Progress) {
		if p.Path != "" {
			logger.Debug("indexed", "path", p.Path,
				"processed", p.Processed, "total", p.Total)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"indexed %d/%d files (%d unchanged, %d deleted, %d failed)\n",
		result.Succeeded, result.Total, result.Unchanged, result.Deleted,
		len(result.Failed))
	for _, f := range result.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "  failed: %s: %v\n", f.Path, f.Err)
	}

	if !indexWatch {
		return nil
	}
	logger.Info("watching for changes", "root", cfg.Index.Root)
	w := indexer.NewWatcher(cfg.Index.Root, buildValidator(cfg), inc,
		cfg.Index.WatchDebounce, logger)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
