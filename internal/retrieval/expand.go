package retrieval

import (
	"context"
	"sort"

	"github.com/maestro-ai/maestro/internal/core"
)

// ExpandNeighbors adds chunks within ±window ordinals of each selected
// chunk at half the selecting chunk's score. The returned list is in
// document order (file, then ordinal); synthetic snippets without a
// chunk keep their relative position at the end.
func ExpandNeighbors(ctx context.Context, reader core.ContextReader, results []Result, window int) ([]Result, error) {
	if window <= 0 {
		return results, nil
	}

	type docKey struct {
		fileID  int64
		ordinal int
	}
	have := make(map[int64]struct{})
	for _, r := range results {
		if r.Snippet.ChunkID != 0 {
			have[r.Snippet.ChunkID] = struct{}{}
		}
	}

	// Load each touched file's chunk list once.
	fileChunks := make(map[int64][]core.Chunk)
	ordinalOf := make(map[int64]int)
	for _, r := range results {
		if r.Snippet.ChunkID == 0 || r.Snippet.FileID == 0 {
			continue
		}
		if _, ok := fileChunks[r.Snippet.FileID]; !ok {
			chunks, err := reader.ChunksByFile(ctx, r.Snippet.FileID)
			if err != nil {
				return nil, err
			}
			fileChunks[r.Snippet.FileID] = chunks
		}
	}
	for _, chunks := range fileChunks {
		for _, c := range chunks {
			ordinalOf[c.ChunkID] = c.Ordinal
		}
	}

	expanded := append([]Result(nil), results...)
	for _, r := range results {
		if r.Snippet.ChunkID == 0 {
			continue
		}
		ord, ok := ordinalOf[r.Snippet.ChunkID]
		if !ok {
			continue
		}
		for _, c := range fileChunks[r.Snippet.FileID] {
			if c.Ordinal < ord-window || c.Ordinal > ord+window || c.ChunkID == r.Snippet.ChunkID {
				continue
			}
			if _, dup := have[c.ChunkID]; dup {
				continue
			}
			have[c.ChunkID] = struct{}{}
			expanded = append(expanded, Result{Snippet: core.ContextSnippet{
				ChunkID:       c.ChunkID,
				FileID:        c.FileID,
				Path:          r.Snippet.Path,
				Language:      r.Snippet.Language,
				Content:       c.Content,
				Score:         r.Snippet.Score / 2,
				TokenEstimate: c.EstimateTokens(),
				Metadata:      map[string]string{"type": "neighbor"},
			}})
		}
	}

	sort.SliceStable(expanded, func(i, j int) bool {
		a, b := expanded[i].Snippet, expanded[j].Snippet
		if a.ChunkID == 0 || b.ChunkID == 0 {
			// Synthetic snippets sink to the tail in original order.
			return b.ChunkID == 0 && a.ChunkID != 0
		}
		ka := docKey{a.FileID, ordinalOf[a.ChunkID]}
		kb := docKey{b.FileID, ordinalOf[b.ChunkID]}
		if ka.fileID != kb.fileID {
			return ka.fileID < kb.fileID
		}
		return ka.ordinal < kb.ordinal
	})
	return expanded, nil
}

// TruncateToBudget emits snippets in order until the next one would
// push the cumulative token estimate past the budget.
func TruncateToBudget(results []Result, budget core.TokenBudget) []Result {
	if budget.AvailableForSnippets <= 0 {
		return nil
	}
	var used int
	out := make([]Result, 0, len(results))
	for _, r := range results {
		cost := r.Snippet.TokenEstimate
		if cost <= 0 {
			cost = (len(r.Snippet.Content) + 3) / 4
		}
		if used+cost > budget.AvailableForSnippets {
			break
		}
		used += cost
		out = append(out, r)
	}
	return out
}
