package indexer

import (
	"context"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/logging"
)

// IncrementalIndexer reconciles the store with the filesystem: it
// discovers, detects changes, reindexes what moved, and propagates
// deletions.
type IncrementalIndexer struct {
	root      string
	validator PathValidator
	reader    core.ContextReader
	writer    core.ContextWriter
	batch     *BatchIndexer
	logger    *logging.Logger
}

// NewIncrementalIndexer wires an incremental pass over root.
func NewIncrementalIndexer(root string, validator PathValidator, reader core.ContextReader, writer core.ContextWriter, batch *BatchIndexer, logger *logging.Logger) *IncrementalIndexer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &IncrementalIndexer{
		root:      root,
		validator: validator,
		reader:    reader,
		writer:    writer,
		batch:     batch,
		logger:    logger,
	}
}

// SyncResult extends a batch result with deletion accounting.
type SyncResult struct {
	BatchResult
	Unchanged    int
	Deleted      int
	DeleteFailed []FileError
}

// Sync runs one full incremental pass. Deletion failures are recorded
// in the result but never abort the pass.
func (x *IncrementalIndexer) Sync(ctx context.Context, onProgress ProgressFunc) (SyncResult, error) {
	discovered, err := Discover(x.root, x.validator, x.logger)
	if err != nil {
		return SyncResult{}, err
	}
	changes, err := DetectChanges(ctx, x.reader, discovered)
	if err != nil {
		return SyncResult{}, err
	}

	var out SyncResult
	for _, c := range changes {
		switch c.Kind {
		case ChangeUnchanged:
			out.Unchanged++
		case ChangeDeleted:
			if err := x.writer.DeleteFileArtifacts(ctx, c.File.RelPath); err != nil {
				x.logger.Warn("deletion propagation failed", "path", c.File.RelPath, "error", err)
				out.DeleteFailed = append(out.DeleteFailed, FileError{Path: c.File.RelPath, Err: err})
				continue
			}
			out.Deleted++
		}
	}

	out.BatchResult, err = x.batch.Run(ctx, changes, onProgress)
	return out, err
}

// SyncPaths reindexes a specific set of relative paths, used by the
// watcher. Paths that no longer exist on disk are treated as deletions.
func (x *IncrementalIndexer) SyncPaths(ctx context.Context, relPaths []string) (SyncResult, error) {
	discovered, err := Discover(x.root, x.validator, x.logger)
	if err != nil {
		return SyncResult{}, err
	}
	wanted := make(map[string]struct{}, len(relPaths))
	for _, p := range relPaths {
		wanted[p] = struct{}{}
	}
	var subset []DiscoveredFile
	for _, f := range discovered {
		if _, ok := wanted[f.RelPath]; ok {
			subset = append(subset, f)
		}
	}

	changes, err := DetectChanges(ctx, x.reader, subset)
	if err != nil {
		return SyncResult{}, err
	}
	// DetectChanges reports everything missing from the subset as
	// deleted; keep only the deletions the caller asked about.
	var scoped []Change
	for _, c := range changes {
		if c.Kind == ChangeDeleted {
			if _, ok := wanted[c.File.RelPath]; !ok {
				continue
			}
		}
		scoped = append(scoped, c)
	}

	var out SyncResult
	for _, c := range scoped {
		switch c.Kind {
		case ChangeUnchanged:
			out.Unchanged++
		case ChangeDeleted:
			if err := x.writer.DeleteFileArtifacts(ctx, c.File.RelPath); err != nil {
				out.DeleteFailed = append(out.DeleteFailed, FileError{Path: c.File.RelPath, Err: err})
				continue
			}
			out.Deleted++
		}
	}
	out.BatchResult, err = x.batch.Run(ctx, scoped, nil)
	return out, err
}
