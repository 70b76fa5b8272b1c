package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
)

// ContextRepo persists the context artifacts: file states and their owned
// chunks, embeddings, links, and symbols. It implements core.ContextWriter
// and core.ContextReader.
//
// Incoming artifact contract for ReplaceFileArtifacts: chunks arrive
// without ids; embeddings, symbols, and intra-file links reference their
// chunk by Ordinal (the ChunkID / SourceChunkID field carries the ordinal).
// The store allocates fresh ids from the named sequences and rewrites the
// references. Cross-file link targets carry real ids.
type ContextRepo struct {
	store *Store
}

// Context returns the context artifact repository.
func (s *Store) Context() *ContextRepo { return &ContextRepo{store: s} }

// ReplaceFileArtifacts swaps a file's artifacts for fresh ones inside one
// transaction. On failure the transaction rollback restores the prior
// state, including other files' links into this one; the pre-read
// snapshot is re-inserted only if the rollback itself fails.
func (r *ContextRepo) ReplaceFileArtifacts(ctx context.Context, state core.FileState, chunks []core.Chunk, embeddings []core.Embedding, links []core.Link, symbols []core.Symbol) error {
	snapshot, err := r.FetchFileArtifactsByPath(ctx, state.RelativePath)
	if err != nil {
		return err
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.replaceTx(tx, snapshot, state, chunks, embeddings, links, symbols); err != nil {
		r.rollbackOrRestore(ctx, tx, state.RelativePath, snapshot)
		return err
	}
	if err := tx.Commit(); err != nil {
		r.rollbackOrRestore(ctx, tx, state.RelativePath, snapshot)
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// rollbackOrRestore undoes a failed replace. The transaction rollback is
// the mechanism of record; only when it reports failure does the snapshot
// re-insert run, rebuilding the rows the snapshot holds.
func (r *ContextRepo) rollbackOrRestore(ctx context.Context, tx *sql.Tx, relativePath string, snapshot *core.FileArtifacts) {
	rbErr := tx.Rollback()
	if rbErr == nil || rbErr == sql.ErrTxDone {
		return
	}
	r.store.logger.Warn("transaction rollback failed, restoring snapshot",
		"path", relativePath, "error", rbErr)
	if restoreErr := r.restoreSnapshot(ctx, relativePath, snapshot); restoreErr != nil {
		rollbackErr := core.ErrRollback(relativePath, restoreErr)
		r.store.logger.Error("artifact rollback failed",
			"path", relativePath, "error", rollbackErr)
	}
}

func (r *ContextRepo) replaceTx(tx *sql.Tx, snapshot *core.FileArtifacts, state core.FileState, chunks []core.Chunk, embeddings []core.Embedding, links []core.Link, symbols []core.Symbol) error {
	now := time.Now()

	// Resolve the file id: reuse the stored one, allocate for new files.
	fileID := state.FileID
	if snapshot != nil {
		fileID = snapshot.State.FileID
	}
	if fileID == 0 {
		id, err := NextIDs(tx, SeqFileState, 1)
		if err != nil {
			return err
		}
		fileID = id
	}

	_, err := tx.Exec(`
		INSERT INTO file_state (file_id, relative_path, content_hash, size_bytes,
			mtime_ns, language, kind, fingerprint, indexed_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(relative_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			mtime_ns = excluded.mtime_ns,
			language = excluded.language,
			kind = excluded.kind,
			fingerprint = excluded.fingerprint,
			indexed_at = excluded.indexed_at,
			is_deleted = 0
	`, fileID, state.RelativePath, state.ContentHash, state.SizeBytes,
		state.MtimeNs, state.Language, state.Kind, state.Fingerprint, now)
	if err != nil {
		return fmt.Errorf("upserting file state: %w", err)
	}

	// Delete dependents of the current chunks, then the chunks.
	if snapshot != nil && len(snapshot.Chunks) > 0 {
		oldIDs := make([]int64, len(snapshot.Chunks))
		for i, c := range snapshot.Chunks {
			oldIDs[i] = c.ChunkID
		}
		if err := deleteChunkDependents(tx, fileID, oldIDs); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	// Insert fresh chunks with sequence-allocated ids; remember the
	// ordinal -> id mapping for dependent rewrites.
	ordinalToID := make(map[int]int64, len(chunks))
	if len(chunks) > 0 {
		base, err := NextIDs(tx, SeqChunks, int64(len(chunks)))
		if err != nil {
			return err
		}
		for i, c := range chunks {
			id := base + int64(i)
			ordinalToID[c.Ordinal] = id
			_, err := tx.Exec(`
				INSERT INTO chunks (chunk_id, file_id, ordinal, kind, start_line,
					end_line, token_estimate, content, summary, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, id, fileID, c.Ordinal, string(c.Kind), c.StartLine, c.EndLine,
				c.TokenEstimate, c.Content, c.Summary, now)
			if err != nil {
				return fmt.Errorf("inserting chunk %d: %w", c.Ordinal, err)
			}
		}
	}

	if len(embeddings) > 0 {
		base, err := NextIDs(tx, SeqEmbeddings, int64(len(embeddings)))
		if err != nil {
			return err
		}
		for i, e := range embeddings {
			chunkID, ok := ordinalToID[int(e.ChunkID)]
			if !ok {
				return fmt.Errorf("embedding %d references unknown chunk ordinal %d", i, e.ChunkID)
			}
			if len(e.Vector) != e.Dimensions {
				return fmt.Errorf("embedding %d: vector length %d != dimensions %d", i, len(e.Vector), e.Dimensions)
			}
			encoded, err := encodeVector(NormalizeL2(e.Vector))
			if err != nil {
				return fmt.Errorf("embedding %d: %w", i, err)
			}
			_, err = tx.Exec(`
				INSERT INTO embeddings (embedding_id, chunk_id, model, dimensions, vector, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, base+int64(i), chunkID, e.Model, e.Dimensions, encoded, now)
			if err != nil {
				return fmt.Errorf("inserting embedding %d: %w", i, err)
			}
		}
	}

	if len(links) > 0 {
		base, err := NextIDs(tx, SeqLinks, int64(len(links)))
		if err != nil {
			return err
		}
		for i, l := range links {
			sourceID, ok := ordinalToID[int(l.SourceChunkID)]
			if !ok {
				return fmt.Errorf("link %d references unknown chunk ordinal %d", i, l.SourceChunkID)
			}
			_, err := tx.Exec(`
				INSERT INTO links (link_id, source_chunk_id, target_file_id,
					target_chunk_id, type, label, score, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, base+int64(i), sourceID, l.TargetFileID, l.TargetChunkID,
				l.Type, l.Label, l.Score, now)
			if err != nil {
				return fmt.Errorf("inserting link %d: %w", i, err)
			}
		}
	}

	for i, sym := range symbols {
		chunkID, ok := ordinalToID[int(sym.ChunkID)]
		if !ok {
			return fmt.Errorf("symbol %d references unknown chunk ordinal %d", i, sym.ChunkID)
		}
		_, err := tx.Exec(`
			INSERT INTO symbols (file_id, chunk_id, type, name, qualified_name,
				signature, start_line, end_line, language)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, fileID, chunkID, string(sym.Type), sym.Name, sym.QualifiedName,
			sym.Signature, sym.StartLine, sym.EndLine, sym.Language)
		if err != nil {
			return fmt.Errorf("inserting symbol %s: %w", sym.Name, err)
		}
	}
	return nil
}

// deleteChunkDependents removes everything hanging off the given chunks:
// embeddings, links (both directions), usage metrics, and symbols.
func deleteChunkDependents(tx *sql.Tx, fileID int64, chunkIDs []int64) error {
	in, args := int64In(chunkIDs)
	if _, err := tx.Exec(`DELETE FROM embeddings WHERE chunk_id IN (`+in+`)`, args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	linkArgs := append(append([]interface{}{}, args...), fileID)
	if _, err := tx.Exec(`DELETE FROM links WHERE source_chunk_id IN (`+in+`) OR target_file_id = ?`, linkArgs...); err != nil {
		return fmt.Errorf("deleting links: %w", err)
	}
	// Usage metrics are advisory; a failed delete is logged by the caller's
	// transaction error path rather than tolerated silently here, because
	// leftover rows would leak chunk ids.
	if _, err := tx.Exec(`DELETE FROM usage_metrics WHERE chunk_id IN (`+in+`)`, args...); err != nil {
		return fmt.Errorf("deleting usage metrics: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("deleting symbols: %w", err)
	}
	return nil
}

// restoreSnapshot puts a file's artifacts back exactly as snapshotted. A
// nil snapshot means the file did not exist: all rows for the path are
// removed.
func (r *ContextRepo) restoreSnapshot(ctx context.Context, relativePath string, snapshot *core.FileArtifacts) error {
	return r.store.InTransaction(ctx, func(tx *sql.Tx) error {
		var fileID int64
		err := tx.QueryRow(`SELECT file_id FROM file_state WHERE relative_path = ?`, relativePath).Scan(&fileID)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("resolving file id: %w", err)
		}
		if err == nil {
			if err := purgeFile(tx, fileID); err != nil {
				return err
			}
		}
		if snapshot == nil {
			return nil
		}

		st := snapshot.State
		_, err = tx.Exec(`
			INSERT INTO file_state (file_id, relative_path, content_hash, size_bytes,
				mtime_ns, language, kind, fingerprint, indexed_at, is_deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, st.FileID, st.RelativePath, st.ContentHash, st.SizeBytes, st.MtimeNs,
			st.Language, st.Kind, st.Fingerprint, st.IndexedAt, boolToInt(st.IsDeleted))
		if err != nil {
			return fmt.Errorf("restoring file state: %w", err)
		}
		for _, c := range snapshot.Chunks {
			_, err := tx.Exec(`
				INSERT INTO chunks (chunk_id, file_id, ordinal, kind, start_line,
					end_line, token_estimate, content, summary, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, c.ChunkID, c.FileID, c.Ordinal, string(c.Kind), c.StartLine,
				c.EndLine, c.TokenEstimate, c.Content, c.Summary, c.CreatedAt)
			if err != nil {
				return fmt.Errorf("restoring chunk %d: %w", c.ChunkID, err)
			}
		}
		for _, e := range snapshot.Embeddings {
			encoded, err := encodeVector(e.Vector)
			if err != nil {
				return fmt.Errorf("restoring embedding %d: %w", e.EmbeddingID, err)
			}
			_, err = tx.Exec(`
				INSERT INTO embeddings (embedding_id, chunk_id, model, dimensions, vector, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, e.EmbeddingID, e.ChunkID, e.Model, e.Dimensions, encoded, e.CreatedAt)
			if err != nil {
				return fmt.Errorf("restoring embedding %d: %w", e.EmbeddingID, err)
			}
		}
		for _, l := range snapshot.Links {
			_, err := tx.Exec(`
				INSERT INTO links (link_id, source_chunk_id, target_file_id,
					target_chunk_id, type, label, score, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, l.LinkID, l.SourceChunkID, l.TargetFileID, l.TargetChunkID,
				l.Type, l.Label, l.Score, l.CreatedAt)
			if err != nil {
				return fmt.Errorf("restoring link %d: %w", l.LinkID, err)
			}
		}
		for _, sym := range snapshot.Symbols {
			_, err := tx.Exec(`
				INSERT INTO symbols (symbol_id, file_id, chunk_id, type, name,
					qualified_name, signature, start_line, end_line, language)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, sym.SymbolID, sym.FileID, sym.ChunkID, string(sym.Type), sym.Name,
				sym.QualifiedName, sym.Signature, sym.StartLine, sym.EndLine, sym.Language)
			if err != nil {
				return fmt.Errorf("restoring symbol %d: %w", sym.SymbolID, err)
			}
		}
		return nil
	})
}

// purgeFile removes the rows a snapshot can re-insert: the file state,
// its chunks, and the dependents of those chunks. Links from other
// files' chunks into this file are not part of a snapshot and stay put.
func purgeFile(tx *sql.Tx, fileID int64) error {
	rows, err := tx.Query(`SELECT chunk_id FROM chunks WHERE file_id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("listing chunks: %w", err)
	}
	var chunkIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning chunk id: %w", err)
		}
		chunkIDs = append(chunkIDs, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterating chunk ids: %w", err)
	}
	_ = rows.Close()

	if len(chunkIDs) > 0 {
		in, args := int64In(chunkIDs)
		if _, err := tx.Exec(`DELETE FROM embeddings WHERE chunk_id IN (`+in+`)`, args...); err != nil {
			return fmt.Errorf("deleting embeddings: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM links WHERE source_chunk_id IN (`+in+`)`, args...); err != nil {
			return fmt.Errorf("deleting links: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM usage_metrics WHERE chunk_id IN (`+in+`)`, args...); err != nil {
			return fmt.Errorf("deleting usage metrics: %w", err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("deleting symbols: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM file_state WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("deleting file state: %w", err)
	}
	return nil
}

// DeleteFileArtifacts removes all dependents of the file's chunks, then
// the chunks, then tombstones the file state.
func (r *ContextRepo) DeleteFileArtifacts(ctx context.Context, relativePath string) error {
	return r.store.InTransaction(ctx, func(tx *sql.Tx) error {
		var fileID int64
		err := tx.QueryRow(`SELECT file_id FROM file_state WHERE relative_path = ?`, relativePath).Scan(&fileID)
		if err == sql.ErrNoRows {
			return core.ErrNotFound("FILE", "file not indexed").WithDetail("path", relativePath)
		}
		if err != nil {
			return fmt.Errorf("resolving file id: %w", err)
		}

		rows, err := tx.Query(`SELECT chunk_id FROM chunks WHERE file_id = ?`, fileID)
		if err != nil {
			return fmt.Errorf("listing chunks: %w", err)
		}
		var chunkIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scanning chunk id: %w", err)
			}
			chunkIDs = append(chunkIDs, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("iterating chunk ids: %w", err)
		}
		_ = rows.Close()

		if len(chunkIDs) > 0 {
			if err := deleteChunkDependents(tx, fileID, chunkIDs); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(`DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
			return fmt.Errorf("deleting chunks: %w", err)
		}
		_, err = tx.Exec(`UPDATE file_state SET is_deleted = 1, indexed_at = ? WHERE file_id = ?`, time.Now(), fileID)
		if err != nil {
			return fmt.Errorf("tombstoning file state: %w", err)
		}
		return nil
	})
}

// RecordUsage notes a retrieval hit on a chunk. Best-effort: failures are
// surfaced for the caller to log, never to abort retrieval.
func (r *ContextRepo) RecordUsage(ctx context.Context, chunkID int64, kind string) error {
	_, err := r.store.db.ExecContext(ctx,
		`INSERT INTO usage_metrics (chunk_id, kind, created_at) VALUES (?, ?, ?)`,
		chunkID, kind, time.Now())
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

func int64In(ids []int64) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}
