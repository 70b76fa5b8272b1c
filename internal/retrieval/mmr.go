package retrieval

// MMR re-ranks results by maximal marginal relevance: each step picks
// the candidate maximizing λ·rel(i) − (1−λ)·max_{j∈S} sim(i,j), where
// sim is cosine over candidate vectors. λ=1 keeps pure relevance
// order, λ=0 maximizes diversity. Candidates without vectors
// contribute zero similarity, so they neither crowd out nor get
// crowded out.
func MMR(results []Result, lambda float64, limit int) []Result {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}
	if len(results) <= 1 {
		return results
	}

	remaining := make([]Result, len(results))
	copy(remaining, results)
	selected := make([]Result, 0, limit)

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := 0
		bestScore := mmrScore(remaining[0], selected, lambda)
		for i := 1; i < len(remaining); i++ {
			if s := mmrScore(remaining[i], selected, lambda); s > bestScore {
				bestScore = s
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func mmrScore(candidate Result, selected []Result, lambda float64) float64 {
	var maxSim float64
	if candidate.Vector != nil {
		for _, s := range selected {
			if s.Vector == nil || len(s.Vector) != len(candidate.Vector) {
				continue
			}
			if sim := dot(candidate.Vector, s.Vector); sim > maxSim {
				maxSim = sim
			}
		}
	}
	return lambda*candidate.Snippet.Score - (1-lambda)*maxSim
}
