package retrieval

import (
	"context"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/logging"
)

// Options tunes one engine instance. The zero value is unusable; use
// DefaultOptions.
type Options struct {
	// PerProviderK caps how many hits each provider contributes before
	// fusion.
	PerProviderK int
	// Lambda is the MMR relevance/diversity trade-off.
	Lambda float64
	// MMRLimit caps results after re-ranking, before expansion.
	MMRLimit int
	// NeighborWindow expands ±N ordinals around each hit. Zero
	// disables expansion.
	NeighborWindow int
	Fusion         FusionConfig
}

// DefaultOptions favors relevance with mild diversity pressure.
func DefaultOptions() Options {
	return Options{
		PerProviderK:   20,
		Lambda:         0.7,
		MMRLimit:       12,
		NeighborWindow: 1,
		Fusion: FusionConfig{
			Weights: map[string]float64{
				"vector":      1.0,
				"fulltext":    0.8,
				"symbol":      0.9,
				"git-history": 0.4,
			},
		},
	}
}

// Engine runs the hybrid retrieval pipeline over a set of providers.
type Engine struct {
	providers []Provider
	reader    core.ContextReader
	opts      Options
	logger    *logging.Logger
}

// NewEngine assembles a retrieval engine. Provider failures degrade
// the response rather than failing the query, except when every
// provider fails.
func NewEngine(reader core.ContextReader, opts Options, logger *logging.Logger, providers ...Provider) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.PerProviderK <= 0 {
		opts.PerProviderK = DefaultOptions().PerProviderK
	}
	return &Engine{providers: providers, reader: reader, opts: opts, logger: logger}
}

// Retrieve answers one context query: provider fan-out, RRF fusion,
// MMR re-ranking, neighbor expansion, then token-budget truncation.
func (e *Engine) Retrieve(ctx context.Context, q Query) ([]core.ContextSnippet, error) {
	perProvider := make(map[string][]Result, len(e.providers))
	var firstErr error
	failures := 0
	for _, p := range e.providers {
		results, err := p.Search(ctx, q.Text, q.Scope, e.opts.PerProviderK)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			e.logger.Warn("retrieval provider failed", "provider", p.Name(), "error", err)
			continue
		}
		if len(results) > 0 {
			perProvider[p.Name()] = results
		}
	}
	if failures == len(e.providers) && firstErr != nil {
		return nil, firstErr
	}

	fused := Fuse(perProvider, e.opts.Fusion)
	ranked := MMR(fused, e.opts.Lambda, e.opts.MMRLimit)

	expanded, err := ExpandNeighbors(ctx, e.reader, ranked, e.opts.NeighborWindow)
	if err != nil {
		return nil, err
	}
	final := TruncateToBudget(expanded, q.Budget)

	snippets := make([]core.ContextSnippet, len(final))
	for i, r := range final {
		snippets[i] = r.Snippet
	}
	e.recordUsage(ctx, snippets)
	return snippets, nil
}

// usageRecorder is satisfied by stores that track retrieval hits.
type usageRecorder interface {
	RecordUsage(ctx context.Context, chunkID int64, kind string) error
}

// recordUsage notes each returned chunk. Best-effort: a failed write
// never affects the response.
func (e *Engine) recordUsage(ctx context.Context, snippets []core.ContextSnippet) {
	rec, ok := e.reader.(usageRecorder)
	if !ok {
		return
	}
	for _, s := range snippets {
		if err := rec.RecordUsage(ctx, s.ChunkID, "retrieval"); err != nil {
			e.logger.Debug("usage record failed", "chunk_id", s.ChunkID, "error", err)
		}
	}
}
