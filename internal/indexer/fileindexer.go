package indexer

import (
	"context"
	"os"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/logging"
)

// FileIndexer runs the per-file pipeline: read, chunk, embed, extract
// symbols, and hand the artifact set to the store for a transactional
// replace.
type FileIndexer struct {
	writer       core.ContextWriter
	embedder     core.Embedder
	chunker      ChunkerConfig
	maxBatchSize int
	logger       *logging.Logger
}

// NewFileIndexer wires the pipeline. maxBatchSize bounds embedder
// batches; values below 1 fall back to 16.
func NewFileIndexer(writer core.ContextWriter, embedder core.Embedder, chunker ChunkerConfig, maxBatchSize int, logger *logging.Logger) *FileIndexer {
	if maxBatchSize < 1 {
		maxBatchSize = 16
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileIndexer{
		writer:       writer,
		embedder:     embedder,
		chunker:      chunker,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// IndexFile indexes one discovered file whose content hash is already
// known. Dependent records reference chunks by ordinal; the store
// allocates real ids.
func (x *FileIndexer) IndexFile(ctx context.Context, f DiscoveredFile, hash string) error {
	raw, err := os.ReadFile(f.AbsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return core.ErrNotFound("FILE_NOT_FOUND", "file does not exist").
				WithDetail("path", f.RelPath)
		}
		return core.ErrIndexing(f.RelPath, err)
	}

	chunks := ChunkFile(f.RelPath, string(raw), x.chunker)
	symbols := ExtractSymbols(f.RelPath, chunks)

	embeddings, err := x.embedChunks(ctx, chunks)
	if err != nil {
		return core.ErrIndexing(f.RelPath, err)
	}

	state := core.FileState{
		RelativePath: f.RelPath,
		ContentHash:  hash,
		SizeBytes:    f.SizeBytes,
		MtimeNs:      f.MtimeNs,
		Language:     LanguageOf(f.RelPath),
		Kind:         KindOf(f.RelPath),
		IndexedAt:    time.Now().UTC(),
	}
	if err := x.writer.ReplaceFileArtifacts(ctx, state, chunks, embeddings, nil, symbols); err != nil {
		return err
	}
	x.logger.Debug("indexed file", "path", f.RelPath, "chunks", len(chunks), "symbols", len(symbols))
	return nil
}

func (x *FileIndexer) embedChunks(ctx context.Context, chunks []core.Chunk) ([]core.Embedding, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	out := make([]core.Embedding, 0, len(chunks))
	for start := 0; start < len(chunks); start += x.maxBatchSize {
		end := start + x.maxBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}
		vectors, err := x.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		for i, v := range vectors {
			out = append(out, core.Embedding{
				ChunkID:    int64(chunks[start+i].Ordinal),
				Model:      x.embedder.ModelName(),
				Dimensions: x.embedder.Dimension(),
				Vector:     v,
			})
		}
	}
	return out, nil
}
