package indexer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/semaphore"

	"github.com/maestro-ai/maestro/internal/logging"
)

// Progress is the running state of a batch, reported after each file.
type Progress struct {
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Path      string `json:"path,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// ProgressFunc observes batch progress. Calls are serialized.
type ProgressFunc func(Progress)

// FileError records a single file failure inside a batch.
type FileError struct {
	Path string
	Err  error
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    []FileError
}

// BatchIndexer indexes a set of files with bounded parallelism. A file
// failure is collected, not fatal; the batch always runs to the end
// unless the context is cancelled.
type BatchIndexer struct {
	files        *FileIndexer
	parallelism  int64
	progressPath string // when set, progress is persisted after each file
	logger       *logging.Logger
}

// NewBatchIndexer builds a batch coordinator. parallelism below 1 is
// treated as 1. progressPath may be empty to skip the progress file.
func NewBatchIndexer(files *FileIndexer, parallelism int, progressPath string, logger *logging.Logger) *BatchIndexer {
	if parallelism < 1 {
		parallelism = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &BatchIndexer{
		files:        files,
		parallelism:  int64(parallelism),
		progressPath: progressPath,
		logger:       logger,
	}
}

// Run indexes every change marked new or modified. Unchanged and
// deleted entries are skipped here; deletions belong to the
// incremental indexer. onProgress may be nil.
func (b *BatchIndexer) Run(ctx context.Context, changes []Change, onProgress ProgressFunc) (BatchResult, error) {
	var work []Change
	for _, c := range changes {
		if c.Kind == ChangeNew || c.Kind == ChangeModified {
			work = append(work, c)
		}
	}

	var (
		mu     sync.Mutex
		result = BatchResult{Total: len(work)}
		prog   = Progress{Total: len(work)}
	)
	report := func(path string, ferr error) {
		mu.Lock()
		defer mu.Unlock()
		prog.Processed++
		prog.Path = path
		if ferr != nil {
			result.Failed = append(result.Failed, FileError{Path: path, Err: ferr})
			prog.Failed++
			prog.LastError = ferr.Error()
		} else {
			result.Succeeded++
			prog.Succeeded++
		}
		b.writeProgress(prog)
		if onProgress != nil {
			onProgress(prog)
		}
	}

	sem := semaphore.NewWeighted(b.parallelism)
	var wg sync.WaitGroup
	for _, c := range work {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return result, err
		}
		wg.Add(1)
		go func(c Change) {
			defer wg.Done()
			defer sem.Release(1)
			err := b.files.IndexFile(ctx, c.File, c.Hash)
			if err != nil {
				b.logger.Warn("file indexing failed", "path", c.File.RelPath, "error", err)
			}
			report(c.File.RelPath, err)
		}(c)
	}
	wg.Wait()
	return result, ctx.Err()
}

// writeProgress persists the progress snapshot atomically so an
// interrupted bootstrap can be inspected and resumed. Failures only
// log: progress is advisory.
func (b *BatchIndexer) writeProgress(p Progress) {
	if b.progressPath == "" {
		return
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return
	}
	if err := renameio.WriteFile(b.progressPath, data, 0o644); err != nil {
		b.logger.Warn("progress file write failed", "path", b.progressPath, "error", err)
	}
}
