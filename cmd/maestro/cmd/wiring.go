package cmd

import (
	"github.com/maestro-ai/maestro/internal/config"
	"github.com/maestro-ai/maestro/internal/embedding"
	"github.com/maestro-ai/maestro/internal/engine"
	"github.com/maestro-ai/maestro/internal/indexer"
	"github.com/maestro-ai/maestro/internal/invoker"
	"github.com/maestro-ai/maestro/internal/logging"
	"github.com/maestro-ai/maestro/internal/registry"
	"github.com/maestro-ai/maestro/internal/retrieval"
	"github.com/maestro-ai/maestro/internal/routing"
	"github.com/maestro-ai/maestro/internal/store"
)

// openStore opens the sqlite store at the configured path.
func openStore(cfg *config.Config, logger *logging.Logger) (*store.Store, error) {
	return store.Open(cfg.Store.Path, logger)
}

// buildRetrieval assembles the hybrid retrieval engine over the
// store's context index.
func buildRetrieval(cfg *config.Config, s *store.Store, logger *logging.Logger) *retrieval.Engine {
	reader := s.Context()
	return retrieval.NewEngine(reader, retrieval.DefaultOptions(), logger,
		retrieval.NewVectorProvider(reader, embedding.NewHashEmbedder()),
		retrieval.NewFullTextProvider(reader),
		retrieval.NewSymbolProvider(reader),
		retrieval.NewGitHistoryProvider(cfg.Index.Root, reader),
	)
}

// buildValidator extends the default path checks with configured
// ignore globs.
func buildValidator(cfg *config.Config) indexer.PathValidator {
	v := indexer.DefaultValidator()
	v.IgnoreGlobs = append(v.IgnoreGlobs, cfg.Index.IgnoreGlobs...)
	return v
}

// buildIncremental wires the full indexing pipeline for one root.
func buildIncremental(cfg *config.Config, s *store.Store, logger *logging.Logger) *indexer.IncrementalIndexer {
	chunker := indexer.DefaultChunkerConfig()
	if cfg.Index.MaxChunkTokens > 0 {
		chunker.MaxTokens = cfg.Index.MaxChunkTokens
	}
	files := indexer.NewFileIndexer(s.Context(), embedding.NewHashEmbedder(), chunker, 16, logger)
	batch := indexer.NewBatchIndexer(files, cfg.Index.Parallelism, cfg.Index.ProgressPath, logger)
	return indexer.NewIncrementalIndexer(cfg.Index.Root, buildValidator(cfg), s.Context(), s.Context(), batch, logger)
}

// buildEngine wires the orchestration engine from configuration. The
// caller owns the store and must close the engine before the store.
func buildEngine(cfg *config.Config, s *store.Store, logger *logging.Logger) (*engine.Engine, error) {
	reg := registry.New(cfg.Roster(), logger)
	inv := invoker.NewExecInvoker(reg, cfg.Index.Root, 0, logger)

	return engine.New(engine.Config{
		Store:     s,
		Registry:  reg,
		Invoker:   inv,
		Retrieval: buildRetrieval(cfg, s, logger),
		Thresholds: routing.Thresholds{
			DirectiveConfidence: cfg.Routing.DirectiveConfidence,
			HighRisk:            cfg.Routing.HighRisk,
			ArchComplexity:      cfg.Routing.ArchComplexity,
		},
		TopK:             cfg.Routing.TopK,
		ConsensusTimeout: cfg.Consensus.Timeout,
		EventBufferSize:  cfg.API.EventBufferSize,
		Logger:           logger,
	})
}
