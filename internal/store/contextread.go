package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maestro-ai/maestro/internal/core"
)

// FetchFileArtifactsByPath returns the full artifact set for a path, or
// nil (no error) when the path was never indexed.
func (r *ContextRepo) FetchFileArtifactsByPath(ctx context.Context, relativePath string) (*core.FileArtifacts, error) {
	state, err := r.fileStateByPath(ctx, relativePath)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	out := &core.FileArtifacts{State: *state}
	out.Chunks, err = r.ChunksByFile(ctx, state.FileID)
	if err != nil {
		return nil, err
	}

	chunkIDs := make([]int64, len(out.Chunks))
	for i, c := range out.Chunks {
		chunkIDs[i] = c.ChunkID
	}
	if len(chunkIDs) > 0 {
		out.Embeddings, err = r.embeddingsByChunks(ctx, chunkIDs)
		if err != nil {
			return nil, err
		}
		out.Links, err = r.linksBySourceChunks(ctx, chunkIDs)
		if err != nil {
			return nil, err
		}
	}
	out.Symbols, err = r.symbolsByFile(ctx, state.FileID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ContextRepo) fileStateByPath(ctx context.Context, relativePath string) (*core.FileState, error) {
	row := r.store.db.QueryRowContext(ctx, fileStateSelect+` WHERE relative_path = ?`, relativePath)
	state, err := scanFileState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return state, err
}

// FileStateByID looks a file state up by id.
func (r *ContextRepo) FileStateByID(ctx context.Context, fileID int64) (*core.FileState, error) {
	row := r.store.db.QueryRowContext(ctx, fileStateSelect+` WHERE file_id = ?`, fileID)
	state, err := scanFileState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("FILE", "file not indexed").WithDetail("file_id", fileID)
	}
	return state, err
}

// ListFileStates returns every file state, tombstones included.
func (r *ContextRepo) ListFileStates(ctx context.Context) ([]core.FileState, error) {
	rows, err := r.store.db.QueryContext(ctx, fileStateSelect+` ORDER BY relative_path`)
	if err != nil {
		return nil, fmt.Errorf("listing file states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.FileState
	for rows.Next() {
		state, err := scanFileState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *state)
	}
	return out, rows.Err()
}

const fileStateSelect = `
	SELECT file_id, relative_path, content_hash, size_bytes, mtime_ns,
		language, kind, fingerprint, indexed_at, is_deleted
	FROM file_state`

func scanFileState(row rowScanner) (*core.FileState, error) {
	var (
		state   core.FileState
		deleted int
	)
	err := row.Scan(&state.FileID, &state.RelativePath, &state.ContentHash,
		&state.SizeBytes, &state.MtimeNs, &state.Language, &state.Kind,
		&state.Fingerprint, &state.IndexedAt, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning file state: %w", err)
	}
	state.IsDeleted = deleted != 0
	return &state, nil
}

const chunkSelect = `
	SELECT chunk_id, file_id, ordinal, kind, start_line, end_line,
		token_estimate, content, summary, created_at
	FROM chunks`

// ChunksByFile returns a file's chunks ordered by ordinal.
func (r *ContextRepo) ChunksByFile(ctx context.Context, fileID int64) ([]core.Chunk, error) {
	return r.queryChunks(ctx, chunkSelect+` WHERE file_id = ? ORDER BY ordinal`, fileID)
}

// ChunksByIDs returns the chunks with the given ids, in id order.
func (r *ContextRepo) ChunksByIDs(ctx context.Context, ids []int64) ([]core.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := int64In(ids)
	return r.queryChunks(ctx, chunkSelect+` WHERE chunk_id IN (`+in+`) ORDER BY chunk_id`, args...)
}

// AllChunks returns every live chunk. Full-text scoring scans this set.
func (r *ContextRepo) AllChunks(ctx context.Context) ([]core.Chunk, error) {
	return r.queryChunks(ctx, chunkSelect+` ORDER BY file_id, ordinal`)
}

func (r *ContextRepo) queryChunks(ctx context.Context, query string, args ...interface{}) ([]core.Chunk, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Chunk
	for rows.Next() {
		var (
			c    core.Chunk
			kind string
		)
		err := rows.Scan(&c.ChunkID, &c.FileID, &c.Ordinal, &kind, &c.StartLine,
			&c.EndLine, &c.TokenEstimate, &c.Content, &c.Summary, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Kind = core.ChunkKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListEmbeddingsByModel returns all embeddings stored for a model.
func (r *ContextRepo) ListEmbeddingsByModel(ctx context.Context, model string) ([]core.Embedding, error) {
	return r.queryEmbeddings(ctx, embeddingSelect+` WHERE model = ? ORDER BY embedding_id`, model)
}

func (r *ContextRepo) embeddingsByChunks(ctx context.Context, chunkIDs []int64) ([]core.Embedding, error) {
	in, args := int64In(chunkIDs)
	return r.queryEmbeddings(ctx, embeddingSelect+` WHERE chunk_id IN (`+in+`) ORDER BY embedding_id`, args...)
}

const embeddingSelect = `
	SELECT embedding_id, chunk_id, model, dimensions, vector, created_at
	FROM embeddings`

func (r *ContextRepo) queryEmbeddings(ctx context.Context, query string, args ...interface{}) ([]core.Embedding, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Embedding
	for rows.Next() {
		var (
			e   core.Embedding
			raw string
		)
		if err := rows.Scan(&e.EmbeddingID, &e.ChunkID, &e.Model, &e.Dimensions, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		e.Vector, err = decodeVector(raw)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", e.EmbeddingID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ContextRepo) linksBySourceChunks(ctx context.Context, chunkIDs []int64) ([]core.Link, error) {
	in, args := int64In(chunkIDs)
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT link_id, source_chunk_id, target_file_id, target_chunk_id,
			type, label, score, created_at
		FROM links WHERE source_chunk_id IN (`+in+`) ORDER BY link_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Link
	for rows.Next() {
		var l core.Link
		err := rows.Scan(&l.LinkID, &l.SourceChunkID, &l.TargetFileID,
			&l.TargetChunkID, &l.Type, &l.Label, &l.Score, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *ContextRepo) symbolsByFile(ctx context.Context, fileID int64) ([]core.Symbol, error) {
	return r.querySymbols(ctx, symbolSelect+` WHERE file_id = ? ORDER BY symbol_id`, fileID)
}

// SymbolsByNames returns symbols whose name or qualified name matches any
// of the given names.
func (r *ContextRepo) SymbolsByNames(ctx context.Context, names []string) ([]core.Symbol, error) {
	if len(names) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(names))
	args := make([]interface{}, 0, len(names)*2)
	for i, n := range names {
		placeholders[i] = "?"
		args = append(args, n)
	}
	in := ""
	for i, p := range placeholders {
		if i > 0 {
			in += ","
		}
		in += p
	}
	for _, n := range names {
		args = append(args, n)
	}
	return r.querySymbols(ctx,
		symbolSelect+` WHERE name IN (`+in+`) OR qualified_name IN (`+in+`) ORDER BY symbol_id`,
		args...)
}

// AllSymbols returns every stored symbol. Fuzzy symbol search scans
// this set.
func (r *ContextRepo) AllSymbols(ctx context.Context) ([]core.Symbol, error) {
	return r.querySymbols(ctx, symbolSelect+` ORDER BY symbol_id`)
}

const symbolSelect = `
	SELECT symbol_id, file_id, chunk_id, type, name, qualified_name,
		signature, start_line, end_line, language
	FROM symbols`

func (r *ContextRepo) querySymbols(ctx context.Context, query string, args ...interface{}) ([]core.Symbol, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying symbols: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Symbol
	for rows.Next() {
		var (
			s       core.Symbol
			symType string
		)
		err := rows.Scan(&s.SymbolID, &s.FileID, &s.ChunkID, &symType, &s.Name,
			&s.QualifiedName, &s.Signature, &s.StartLine, &s.EndLine, &s.Language)
		if err != nil {
			return nil, fmt.Errorf("scanning symbol: %w", err)
		}
		s.Type = core.SymbolType(symType)
		out = append(out, s)
	}
	return out, rows.Err()
}
