// Package retrieval answers context queries over the indexed corpus.
// Independent providers (vector, full-text, symbol, git history) each
// produce scored snippets; reciprocal-rank fusion merges them, MMR
// re-ranks for diversity, and a token budget caps the final response.
package retrieval

import (
	"context"

	"github.com/maestro-ai/maestro/internal/core"
)

// Result is one provider hit. Vector carries the candidate's embedding
// when the provider has it; MMR falls back to zero similarity without
// one.
type Result struct {
	Snippet core.ContextSnippet
	Vector  []float32
}

// Provider is a single retrieval strategy.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, scope core.ContextScope, k int) ([]Result, error)
}

// Query is one retrieval request.
type Query struct {
	Text   string
	Scope  core.ContextScope
	Budget core.TokenBudget
}

// inScope applies scope filters to a file state. Filters run before
// scoring so out-of-scope candidates never cost a comparison.
func inScope(scope core.ContextScope, state *core.FileState) bool {
	if state == nil || state.IsDeleted {
		return false
	}
	if len(scope.PathPrefixes) > 0 {
		ok := false
		for _, p := range scope.PathPrefixes {
			if len(state.RelativePath) >= len(p) && state.RelativePath[:len(p)] == p {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(scope.Languages) > 0 && !containsString(scope.Languages, state.Language) {
		return false
	}
	if len(scope.Kinds) > 0 && !containsString(scope.Kinds, state.Kind) {
		return false
	}
	return true
}

func containsString(hay []string, needle string) bool {
	for _, h := range hay {
		if h == needle {
			return true
		}
	}
	return false
}

// corpusView caches chunk and file lookups for the duration of one
// query so providers do not each re-read the store.
type corpusView struct {
	reader core.ContextReader
	states map[int64]*core.FileState
}

func newCorpusView(ctx context.Context, reader core.ContextReader) (*corpusView, error) {
	states, err := reader.ListFileStates(ctx)
	if err != nil {
		return nil, err
	}
	v := &corpusView{reader: reader, states: make(map[int64]*core.FileState, len(states))}
	for i := range states {
		v.states[states[i].FileID] = &states[i]
	}
	return v, nil
}

func (v *corpusView) stateOf(fileID int64) *core.FileState {
	return v.states[fileID]
}

func (v *corpusView) snippetFor(chunk *core.Chunk, score float64) core.ContextSnippet {
	state := v.stateOf(chunk.FileID)
	s := core.ContextSnippet{
		ChunkID:       chunk.ChunkID,
		FileID:        chunk.FileID,
		Content:       chunk.Content,
		Score:         score,
		TokenEstimate: chunk.EstimateTokens(),
	}
	if state != nil {
		s.Path = state.RelativePath
		s.Language = state.Language
	}
	return s
}
