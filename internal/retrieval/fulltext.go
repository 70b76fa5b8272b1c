package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/maestro-ai/maestro/internal/core"
)

const (
	longTermLen    = 8
	shortTermLen   = 4
	longTermBoost  = 1.15
	shortTermPenal = 0.95
)

// FullTextProvider scores chunks by term frequency with optional IDF
// weighting. Long terms carry extra weight because they are rarer and
// more intentional; very short terms are slightly discounted.
type FullTextProvider struct {
	reader core.ContextReader
	UseIDF bool
}

// NewFullTextProvider builds the lexical provider with IDF enabled.
func NewFullTextProvider(reader core.ContextReader) *FullTextProvider {
	return &FullTextProvider{reader: reader, UseIDF: true}
}

func (p *FullTextProvider) Name() string { return "fulltext" }

func (p *FullTextProvider) Search(ctx context.Context, query string, scope core.ContextScope, k int) ([]Result, error) {
	terms := textTokens(query)
	if len(terms) == 0 {
		return nil, nil
	}

	view, err := newCorpusView(ctx, p.reader)
	if err != nil {
		return nil, err
	}
	chunks, err := p.reader.AllChunks(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []*core.Chunk
	for i := range chunks {
		if inScope(scope, view.stateOf(chunks[i].FileID)) {
			candidates = append(candidates, &chunks[i])
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Document frequency per query term, computed lazily over the
	// candidate set only.
	df := make(map[string]int, len(terms))
	tokenized := make([]map[string]int, len(candidates))
	for i, c := range candidates {
		counts := make(map[string]int)
		for _, tok := range textTokens(c.Content) {
			counts[tok]++
		}
		tokenized[i] = counts
		for _, term := range terms {
			if counts[term] > 0 {
				df[term]++
			}
		}
	}

	n := float64(len(candidates))
	var out []Result
	var maxScore float64
	for i, c := range candidates {
		var score float64
		for _, term := range terms {
			tf := tokenized[i][term]
			if tf == 0 {
				continue
			}
			w := 1.0 + math.Log(float64(tf))
			if p.UseIDF {
				w *= math.Log(1 + n/float64(df[term]))
			}
			switch {
			case len(term) >= longTermLen:
				w *= longTermBoost
			case len(term) < shortTermLen:
				w *= shortTermPenal
			}
			score += w
		}
		if score == 0 {
			continue
		}
		if score > maxScore {
			maxScore = score
		}
		out = append(out, Result{Snippet: view.snippetFor(c, score)})
	}

	// Normalize into [0,1] relative to the best hit.
	if maxScore > 0 {
		for i := range out {
			out[i].Snippet.Score /= maxScore
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Snippet.Score > out[j].Snippet.Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func textTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
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
