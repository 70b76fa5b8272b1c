package embedding

import (
	"context"
	"math"
	"testing"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "refactor the login handler")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, "refactor the login handler")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(a) != e.Dimension() {
		t.Fatalf("dimension = %d, want %d", len(a), e.Dimension())
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashEmbedder_UnitNorm(t *testing.T) {
	e := NewHashEmbedder()
	v, err := e.Embed(context.Background(), "consensus decision for payment flow")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if got := math.Sqrt(sum); math.Abs(got-1) > 1e-4 {
		t.Fatalf("norm = %v, want 1", got)
	}
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder()
	v, err := e.Embed(context.Background(), "   \n\t")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, f := range v {
		if f != 0 {
			t.Fatalf("component %d = %v, want zero vector for empty text", i, f)
		}
	}
}

func TestHashEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewHashEmbedder()
	ctx := context.Background()

	base, _ := e.Embed(ctx, "authentication token validation in the session store")
	near, _ := e.Embed(ctx, "validate authentication tokens from the session store")
	far, _ := e.Embed(ctx, "markdown table rendering widths")

	if cos(base, near) <= cos(base, far) {
		t.Fatalf("related text should score above unrelated: near=%v far=%v",
			cos(base, near), cos(base, far))
	}
}

func TestHashEmbedder_BatchMatchesSingle(t *testing.T) {
	e := NewHashEmbedder()
	ctx := context.Background()

	texts := []string{"alpha beta", "gamma delta"}
	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch size = %d", len(batch))
	}
	single, _ := e.Embed(ctx, texts[1])
	for i := range single {
		if batch[1][i] != single[i] {
			t.Fatalf("batch and single embeddings disagree at %d", i)
		}
	}
}

func TestHashEmbedder_BatchHonorsCancellation(t *testing.T) {
	e := NewHashEmbedder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.EmbedBatch(ctx, []string{"a"}); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func cos(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
