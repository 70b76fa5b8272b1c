package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/maestro-ai/maestro/internal/core"
)

// VectorProvider ranks chunks by cosine similarity between the query
// embedding and stored embeddings of the same model.
type VectorProvider struct {
	reader   core.ContextReader
	embedder core.Embedder
}

// NewVectorProvider builds the semantic provider.
func NewVectorProvider(reader core.ContextReader, embedder core.Embedder) *VectorProvider {
	return &VectorProvider{reader: reader, embedder: embedder}
}

func (p *VectorProvider) Name() string { return "vector" }

// Search embeds the query and scores every stored embedding of the
// matching model by dot product over unit vectors. Zero vectors,
// dimension mismatches, and NaN scores are skipped.
func (p *VectorProvider) Search(ctx context.Context, query string, scope core.ContextScope, k int) ([]Result, error) {
	qvec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	normalizeInPlace(qvec)
	if isZero(qvec) {
		return nil, nil
	}

	view, err := newCorpusView(ctx, p.reader)
	if err != nil {
		return nil, err
	}
	embeddings, err := p.reader.ListEmbeddingsByModel(ctx, p.embedder.ModelName())
	if err != nil {
		return nil, err
	}

	chunkIDs := make([]int64, 0, len(embeddings))
	for _, e := range embeddings {
		chunkIDs = append(chunkIDs, e.ChunkID)
	}
	chunks, err := p.reader.ChunksByIDs(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	chunkByID := make(map[int64]*core.Chunk, len(chunks))
	for i := range chunks {
		chunkByID[chunks[i].ChunkID] = &chunks[i]
	}

	var out []Result
	for i := range embeddings {
		e := &embeddings[i]
		chunk, ok := chunkByID[e.ChunkID]
		if !ok {
			continue
		}
		if !inScope(scope, view.stateOf(chunk.FileID)) {
			continue
		}
		if len(e.Vector) != len(qvec) || isZero(e.Vector) {
			continue
		}
		cand := e.Vector
		if !isUnit(cand) {
			cand = append([]float32(nil), cand...)
			normalizeInPlace(cand)
		}
		score := dot(qvec, cand)
		if math.IsNaN(score) {
			continue
		}
		// Cosine over unit vectors lands in [-1,1]; fold into [0,1].
		score = (score + 1) / 2
		out = append(out, Result{Snippet: view.snippetFor(chunk, score), Vector: cand})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Snippet.Score > out[j].Snippet.Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}

func isUnit(v []float32) bool {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Abs(sum-1) < 1e-6
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}
