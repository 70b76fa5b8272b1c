package retrieval

import (
	"testing"

	"github.com/maestro-ai/maestro/internal/core"
)

func res(chunkID int64, path string, score float64, vec ...float32) Result {
	var v []float32
	if len(vec) > 0 {
		v = vec
	}
	return Result{
		Snippet: core.ContextSnippet{ChunkID: chunkID, Path: path, Score: score, TokenEstimate: 10},
		Vector:  v,
	}
}

func TestFuse_AgreementWins(t *testing.T) {
	perProvider := map[string][]Result{
		"vector":   {res(1, "a.go", 0.9), res(2, "b.go", 0.8)},
		"fulltext": {res(2, "b.go", 0.7), res(3, "c.go", 0.6)},
	}
	out := Fuse(perProvider, FusionConfig{})

	if len(out) != 3 {
		t.Fatalf("fused = %d results, want 3", len(out))
	}
	// Chunk 2 appears in both rankings and must come out on top.
	if out[0].Snippet.ChunkID != 2 {
		t.Fatalf("top result = chunk %d, want 2", out[0].Snippet.ChunkID)
	}
	for _, r := range out {
		if r.Snippet.Score < 0 || r.Snippet.Score > 1 {
			t.Fatalf("score %v out of [0,1]", r.Snippet.Score)
		}
	}
}

func TestFuse_TieBreaksByIndividualScore(t *testing.T) {
	// Same rank in different providers with equal weight: identical
	// RRF mass, so the higher provider-local score decides.
	perProvider := map[string][]Result{
		"vector":   {res(1, "a.go", 0.5)},
		"fulltext": {res(2, "b.go", 0.9)},
	}
	out := Fuse(perProvider, FusionConfig{})
	if out[0].Snippet.ChunkID != 2 {
		t.Fatalf("tie should break toward higher individual score, got chunk %d", out[0].Snippet.ChunkID)
	}
}

func TestFuse_WeightsAndBoosts(t *testing.T) {
	perProvider := map[string][]Result{
		"vector":   {res(1, "internal/auth/a.go", 0.9)},
		"fulltext": {res(2, "docs/b.md", 0.9)},
	}
	cfg := FusionConfig{
		Weights:    map[string]float64{"vector": 1, "fulltext": 1},
		PathBoosts: map[string]float64{"docs/": 2.0},
	}
	out := Fuse(perProvider, cfg)
	if out[0].Snippet.Path != "docs/b.md" {
		t.Fatalf("path boost should promote docs/b.md, got %s", out[0].Snippet.Path)
	}

	// Zero weight removes a provider entirely.
	cfg = FusionConfig{Weights: map[string]float64{"fulltext": 0}}
	out = Fuse(perProvider, cfg)
	if len(out) != 1 || out[0].Snippet.ChunkID != 1 {
		t.Fatalf("zero-weight provider should not contribute: %+v", out)
	}
}

func TestMMR_LambdaOnePreservesRelevanceOrder(t *testing.T) {
	input := []Result{
		res(1, "a", 0.9, 1, 0),
		res(2, "b", 0.8, 1, 0),
		res(3, "c", 0.7, 0, 1),
	}
	out := MMR(input, 1.0, 0)
	for i, want := range []int64{1, 2, 3} {
		if out[i].Snippet.ChunkID != want {
			t.Fatalf("position %d = chunk %d, want %d", i, out[i].Snippet.ChunkID, want)
		}
	}
}

func TestMMR_LambdaZeroMaximizesDiversity(t *testing.T) {
	// Chunks 1 and 2 are identical vectors; 3 is orthogonal. With
	// λ=0 the second pick must be the diverse one.
	input := []Result{
		res(1, "a", 0.9, 1, 0),
		res(2, "b", 0.8, 1, 0),
		res(3, "c", 0.1, 0, 1),
	}
	out := MMR(input, 0.0, 2)
	if len(out) != 2 {
		t.Fatalf("limit not applied: %d", len(out))
	}
	if out[1].Snippet.ChunkID != 3 {
		t.Fatalf("second pick = chunk %d, want the orthogonal 3", out[1].Snippet.ChunkID)
	}
}

func TestTruncateToBudget(t *testing.T) {
	input := []Result{
		res(1, "a", 0.9), // 10 tokens each
		res(2, "b", 0.8),
		res(3, "c", 0.7),
	}
	out := TruncateToBudget(input, core.TokenBudget{AvailableForSnippets: 25})
	if len(out) != 2 {
		t.Fatalf("kept %d snippets, want 2 within a 25-token budget", len(out))
	}
	if got := TruncateToBudget(input, core.TokenBudget{}); got != nil {
		t.Fatalf("zero budget must yield nothing, got %d", len(got))
	}
}

func TestQueryTokens(t *testing.T) {
	got := QueryTokens("refactor ParseDirective and route_task() via engine.submit, skip TODO")
	want := map[string]bool{
		"ParseDirective": true,
		"route_task":     true,
		"engine.submit":  true,
	}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v", got)
	}
	for _, tok := range got {
		if !want[tok] {
			t.Fatalf("unexpected token %q in %v", tok, got)
		}
	}
}
