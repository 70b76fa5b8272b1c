package directive

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/maestro-ai/maestro/internal/ident"
)

// fuzzyMaxDistance and fuzzyMinRatio gate approximate mentions: an edit
// distance of at most 2 and a similarity ratio of at least 0.75.
const (
	fuzzyMaxDistance = 2
	fuzzyMinRatio    = 0.75
)

// matchAgentAt tries to resolve the token at position i (optionally a
// multi-token display name starting there) to a registered agent. The match
// ladder is: exact id, @id, display name, id without hyphens, then fuzzy.
func (p *Parser) matchAgentAt(tokens []string, i int) (ident.AgentID, bool) {
	tok := tokens[i]
	bare := strings.TrimPrefix(tok, "@")

	for _, agent := range p.registry.All() {
		id := string(agent.ID)
		if bare == id {
			return agent.ID, true
		}
		if strings.HasPrefix(tok, "@") && bare == id {
			return agent.ID, true
		}
		if bare == strings.ReplaceAll(id, "-", "") {
			return agent.ID, true
		}
		if matchesDisplayName(tokens, i, agent.DisplayName) {
			return agent.ID, true
		}
	}

	// Fuzzy resolution: only for tokens long enough to carry signal.
	if len(bare) < 3 {
		return "", false
	}
	ids := make([]string, 0)
	for _, agent := range p.registry.All() {
		ids = append(ids, string(agent.ID))
	}

	// Subsequence ranking narrows candidates cheaply; transpositions slip
	// through it, so fall back to scanning the full roster. Either way a
	// candidate only counts if it clears the edit-distance gate.
	candidates := make([]string, 0, len(ids))
	for _, m := range fuzzy.Find(bare, ids) {
		candidates = append(candidates, ids[m.Index])
	}
	candidates = append(candidates, ids...)

	best := ""
	bestRatio := 0.0
	for _, candidate := range candidates {
		dist := damerauLevenshtein(bare, candidate)
		if dist > fuzzyMaxDistance {
			continue
		}
		longest := len(bare)
		if len(candidate) > longest {
			longest = len(candidate)
		}
		if ratio := 1 - float64(dist)/float64(longest); ratio >= fuzzyMinRatio && ratio > bestRatio {
			best = candidate
			bestRatio = ratio
		}
	}
	if best != "" {
		return ident.AgentID(best), true
	}
	return "", false
}

// matchesDisplayName matches the lowercase display name as a token sequence
// starting at position i.
func matchesDisplayName(tokens []string, i int, displayName string) bool {
	want := strings.Fields(strings.ToLower(displayName))
	if len(want) == 0 || i+len(want) > len(tokens) {
		return false
	}
	for j, w := range want {
		if strings.TrimPrefix(tokens[i+j], "@") != w {
			return false
		}
	}
	return true
}

// damerauLevenshtein computes the optimal string alignment distance:
// insertions, deletions, substitutions, and adjacent transpositions.
func damerauLevenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev2 := make([]int, lb+1)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if t := prev2[j-2] + 1; t < curr[j] {
					curr[j] = t
				}
			}
		}
		prev2, prev, curr = prev, curr, prev2
	}
	return prev[lb]
}

func minInt(nums ...int) int {
	m := nums[0]
	for _, n := range nums[1:] {
		if n < m {
			m = n
		}
	}
	return m
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
