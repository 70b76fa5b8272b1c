package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/maestro-ai/maestro/internal/core"
)

// symbolTokenRe matches symbol-shaped tokens: CamelCase, snake_case,
// call syntax name(), and qualified paths a.b.c.
var symbolTokenRe = regexp.MustCompile(
	`[A-Za-z_][A-Za-z0-9_]*\(\)|[a-z_][a-z0-9_]*(?:\.[a-z_][a-z0-9_]*)+|[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+|[a-z][a-z0-9]*(?:_[a-z0-9]+)+`)

// symbolExclusions are common words that pass the shape check but are
// never useful lookups.
var symbolExclusions = map[string]struct{}{
	"to_do": {}, "e_g": {}, "i_e": {}, "TODO": {}, "README": {},
}

// typeRank orders symbol types at equal relevance: containers first.
var typeRank = map[core.SymbolType]int{
	core.SymbolClass:     0,
	core.SymbolInterface: 0,
	core.SymbolFunction:  1,
	core.SymbolMethod:    1,
	core.SymbolProperty:  2,
	core.SymbolVariable:  2,
	core.SymbolImport:    3,
}

// SymbolProvider resolves symbol-shaped query tokens against the
// extracted symbol table, exact matches first, then fuzzy.
type SymbolProvider struct {
	reader core.ContextReader
}

func NewSymbolProvider(reader core.ContextReader) *SymbolProvider {
	return &SymbolProvider{reader: reader}
}

func (p *SymbolProvider) Name() string { return "symbol" }

// QueryTokens returns the symbol-shaped tokens in a query, call parens
// stripped, exclusions removed.
func QueryTokens(query string) []string {
	raw := symbolTokenRe.FindAllString(query, -1)
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, tok := range raw {
		tok = strings.TrimSuffix(tok, "()")
		if _, excluded := symbolExclusions[tok]; excluded {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func (p *SymbolProvider) Search(ctx context.Context, query string, scope core.ContextScope, k int) ([]Result, error) {
	tokens := QueryTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	view, err := newCorpusView(ctx, p.reader)
	if err != nil {
		return nil, err
	}

	// Exact pass against name and qualified name.
	symbols, err := p.reader.SymbolsByNames(ctx, tokens)
	if err != nil {
		return nil, err
	}
	matched := make(map[int64]float64) // symbolID -> relevance
	byID := make(map[int64]core.Symbol)
	for _, s := range symbols {
		matched[s.SymbolID] = 1.0
		byID[s.SymbolID] = s
	}

	// Fuzzy pass over the remaining tokens. Qualified tokens also try
	// their last segment so a.b.c finds c.
	var unresolved []string
	for _, tok := range tokens {
		found := false
		for _, s := range symbols {
			if s.Name == tok || s.QualifiedName == tok {
				found = true
				break
			}
		}
		if !found {
			unresolved = append(unresolved, tok)
			if i := strings.LastIndex(tok, "."); i >= 0 {
				unresolved = append(unresolved, tok[i+1:])
			}
		}
	}
	if len(unresolved) > 0 {
		if err := p.fuzzyResolve(ctx, unresolved, matched, byID); err != nil {
			return nil, err
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	// One result per chunk, best symbol wins; containers outrank
	// functions at equal relevance.
	type hit struct {
		sym core.Symbol
		rel float64
	}
	bestByChunk := make(map[int64]hit)
	for id, rel := range matched {
		s := byID[id]
		prev, ok := bestByChunk[s.ChunkID]
		if !ok || rel > prev.rel ||
			(rel == prev.rel && typeRank[s.Type] < typeRank[prev.sym.Type]) {
			bestByChunk[s.ChunkID] = hit{sym: s, rel: rel}
		}
	}

	chunkIDs := make([]int64, 0, len(bestByChunk))
	for id := range bestByChunk {
		chunkIDs = append(chunkIDs, id)
	}
	chunks, err := p.reader.ChunksByIDs(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}

	var out []Result
	for i := range chunks {
		c := &chunks[i]
		if !inScope(scope, view.stateOf(c.FileID)) {
			continue
		}
		h := bestByChunk[c.ChunkID]
		snip := view.snippetFor(c, h.rel)
		snip.Metadata = map[string]string{
			"symbol":      h.sym.Name,
			"symbol_type": string(h.sym.Type),
		}
		out = append(out, Result{Snippet: snip})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Snippet.Score != b.Snippet.Score {
			return a.Snippet.Score > b.Snippet.Score
		}
		return typeRank[bestByChunk[a.Snippet.ChunkID].sym.Type] <
			typeRank[bestByChunk[b.Snippet.ChunkID].sym.Type]
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// fuzzyResolve matches unresolved tokens against every known symbol
// name. Fuzzy hits score below exact ones.
func (p *SymbolProvider) fuzzyResolve(ctx context.Context, tokens []string, matched map[int64]float64, byID map[int64]core.Symbol) error {
	all, err := p.reader.AllSymbols(ctx)
	if err != nil {
		return err
	}
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	for _, tok := range tokens {
		for _, m := range fuzzy.Find(tok, names) {
			s := all[m.Index]
			rel := 0.6 + 0.2*float64(len(tok))/float64(max(len(s.Name), len(tok)))
			if prev, ok := matched[s.SymbolID]; !ok || rel > prev {
				matched[s.SymbolID] = rel
				byID[s.SymbolID] = s
			}
		}
	}
	return nil
}
