package retrieval

import (
	"sort"
	"strconv"
)

const rrfK = 60.0

// FusionConfig weights each provider's contribution to the merged
// ranking and applies post-fusion boosts.
type FusionConfig struct {
	// Weights maps provider name to its RRF weight. Providers absent
	// from the map get weight 1.
	Weights map[string]float64
	// PathBoosts multiplies the fused score when the snippet path has
	// the prefix. LanguageBoosts does the same per language.
	PathBoosts     map[string]float64
	LanguageBoosts map[string]float64
}

// Fuse merges per-provider rankings with reciprocal-rank fusion:
// score(d) = Σ weight(p) / (k + rank_p(d)). Snippets are keyed by
// chunk id, or by path for synthetic snippets without one. Ties break
// by the higher individual provider score. Boosts apply after fusion
// and the final score is clamped to [0,1].
func Fuse(perProvider map[string][]Result, cfg FusionConfig) []Result {
	type fused struct {
		result    Result
		score     float64
		bestInner float64
	}
	merged := make(map[string]*fused)

	var totalWeight float64
	for provider, results := range perProvider {
		weight := 1.0
		if w, ok := cfg.Weights[provider]; ok {
			weight = w
		}
		if weight == 0 || len(results) == 0 {
			continue
		}
		totalWeight += weight
		for rank, r := range results {
			key := fuseKey(r)
			item, ok := merged[key]
			if !ok {
				item = &fused{result: r}
				merged[key] = item
			}
			item.score += weight / (rrfK + float64(rank+1))
			if r.Snippet.Score > item.bestInner {
				item.bestInner = r.Snippet.Score
				// Prefer the richest variant of the snippet.
				if item.result.Vector == nil || r.Vector != nil {
					item.result = r
				}
			}
		}
	}

	out := make([]Result, 0, len(merged))
	inner := make(map[string]float64, len(merged))
	for key, f := range merged {
		score := f.score * boostFor(cfg, f.result)
		// Raw RRF mass tops out at totalWeight/(k+1); scale so a
		// document ranked first by every provider lands near 1.
		if totalWeight > 0 {
			score *= (rrfK + 1) / totalWeight
		}
		if score > 1 {
			score = 1
		}
		if score < 0 {
			score = 0
		}
		f.result.Snippet.Score = score
		out = append(out, f.result)
		inner[key] = f.bestInner
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Snippet.Score != b.Snippet.Score {
			return a.Snippet.Score > b.Snippet.Score
		}
		return inner[fuseKey(a)] > inner[fuseKey(b)]
	})
	return out
}

func fuseKey(r Result) string {
	if r.Snippet.ChunkID != 0 {
		return "c:" + strconv.FormatInt(r.Snippet.ChunkID, 10)
	}
	return "p:" + r.Snippet.Path + ":" + r.Snippet.Metadata["type"] + ":" + r.Snippet.Metadata["commit"]
}

func boostFor(cfg FusionConfig, r Result) float64 {
	boost := 1.0
	for prefix, b := range cfg.PathBoosts {
		if len(r.Snippet.Path) >= len(prefix) && r.Snippet.Path[:len(prefix)] == prefix {
			boost *= b
		}
	}
	if b, ok := cfg.LanguageBoosts[r.Snippet.Language]; ok {
		boost *= b
	}
	return boost
}
