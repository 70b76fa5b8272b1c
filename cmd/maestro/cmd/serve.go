package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maestro-ai/maestro/internal/api"
	"github.com/maestro-ai/maestro/internal/indexer"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `serve starts the read-only HTTP API: task listings, recent
events, and the performance report. With --watch it also keeps the
context index in sync with the working tree.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false,
		"watch the index root and reindex on change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	eng, err := buildEngine(cfg, s, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	ring := api.NewEventRing(cfg.API.EventRingSize)
	ring.Observe(eng.Events())

	server := api.NewServer(eng.Tasks(), ring,
		api.WithReporter(eng),
		api.WithLogger(logger))
	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server listening", "addr", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if serveWatch {
		g.Go(func() error {
			inc := buildIncremental(cfg, s, logger)
			w := indexer.NewWatcher(cfg.Index.Root, buildValidator(cfg), inc,
				cfg.Index.WatchDebounce, logger)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}
