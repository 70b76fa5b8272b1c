// Package embedding provides embedder implementations behind the
// core.Embedder port. The hash embedder is deterministic and fully
// offline: it exists so indexing and retrieval work end to end without
// a model endpoint, and so tests get stable vectors.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

const (
	// HashModelName identifies vectors produced by the hash embedder.
	// Stored embeddings are only comparable within one model name.
	HashModelName = "hash-256"

	hashDimensions = 256
)

// HashEmbedder maps text to a fixed-dimension vector by hashing word
// shingles into buckets. The same text always yields the same vector,
// and similar texts share buckets, which is enough signal for cosine
// ranking over a small corpus.
type HashEmbedder struct{}

// NewHashEmbedder returns the deterministic reference embedder.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

func (e *HashEmbedder) ModelName() string { return HashModelName }

func (e *HashEmbedder) Dimension() int { return hashDimensions }

// Embed produces a unit-length vector for text. Empty or
// whitespace-only text yields the zero vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashDimensions)
	tokens := hashTokens(text)
	if len(tokens) == 0 {
		return vec, nil
	}

	for _, tok := range tokens {
		bucket, sign := bucketOf(tok)
		vec[bucket] += sign
	}
	// Bigram shingles capture a little word order.
	for i := 0; i+1 < len(tokens); i++ {
		bucket, sign := bucketOf(tokens[i] + " " + tokens[i+1])
		vec[bucket] += sign * 0.5
	}

	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order. A failed item aborts the batch.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func hashTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// bucketOf hashes a token to a vector index plus a +/-1 sign. The sign
// bit keeps unrelated tokens from only ever adding mass to a bucket.
func bucketOf(token string) (int, float32) {
	sum := sha256.Sum256([]byte(token))
	idx := binary.BigEndian.Uint32(sum[:4]) % hashDimensions
	sign := float32(1)
	if sum[4]&1 == 1 {
		sign = -1
	}
	return int(idx), sign
}

func normalize(v []float32) {
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
