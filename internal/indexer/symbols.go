package indexer

import (
	"regexp"
	"strings"

	"github.com/maestro-ai/maestro/internal/core"
)

type symbolPattern struct {
	re   *regexp.Regexp
	kind core.SymbolType
}

// Declaration patterns per language. Regex extraction is deliberately
// shallow: it has to be cheap enough to run on every indexed file, and
// retrieval treats symbols as hints, not ground truth.
var symbolPatterns = map[string][]symbolPattern{
	"go": {
		{regexp.MustCompile(`^func\s+\(\s*\w+\s+\*?(\w+)\s*\)\s+(\w+)\s*\(`), core.SymbolMethod},
		{regexp.MustCompile(`^func\s+(\w+)\s*\(`), core.SymbolFunction},
		{regexp.MustCompile(`^type\s+(\w+)\s+struct\b`), core.SymbolClass},
		{regexp.MustCompile(`^type\s+(\w+)\s+interface\b`), core.SymbolInterface},
		{regexp.MustCompile(`^var\s+(\w+)\b`), core.SymbolVariable},
	},
	"python": {
		{regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`), core.SymbolFunction},
		{regexp.MustCompile(`^\s*class\s+(\w+)\b`), core.SymbolClass},
	},
	"javascript": {
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`), core.SymbolFunction},
		{regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)\b`), core.SymbolClass},
		{regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=`), core.SymbolVariable},
	},
	"typescript": {
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`), core.SymbolFunction},
		{regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)\b`), core.SymbolClass},
		{regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)\b`), core.SymbolInterface},
		{regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=`), core.SymbolVariable},
	},
	"rust": {
		{regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+(\w+)\s*[(<]`), core.SymbolFunction},
		{regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+(\w+)\b`), core.SymbolClass},
		{regexp.MustCompile(`^\s*(?:pub\s+)?trait\s+(\w+)\b`), core.SymbolInterface},
	},
	"java": {
		{regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+)?(?:abstract\s+|final\s+)?class\s+(\w+)\b`), core.SymbolClass},
		{regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+)?interface\s+(\w+)\b`), core.SymbolInterface},
	},
}

// ExtractSymbols scans chunks for declarations in the file's language.
// Symbols reference their chunk by ordinal in ChunkID; the store
// rewrites ordinals to real ids at persist time. Methods carry a
// receiver-qualified name.
func ExtractSymbols(relPath string, chunks []core.Chunk) []core.Symbol {
	lang := LanguageOf(relPath)
	patterns, ok := symbolPatterns[lang]
	if !ok {
		return nil
	}

	var out []core.Symbol
	for _, chunk := range chunks {
		for i, line := range strings.Split(chunk.Content, "\n") {
			for _, p := range patterns {
				m := p.re.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				sym := core.Symbol{
					ChunkID:   int64(chunk.Ordinal),
					Type:      p.kind,
					Name:      m[1],
					Signature: strings.TrimSpace(line),
					StartLine: chunk.StartLine + i,
					EndLine:   chunk.StartLine + i,
					Language:  lang,
				}
				if p.kind == core.SymbolMethod && len(m) > 2 {
					sym.Name = m[2]
					sym.QualifiedName = m[1] + "." + m[2]
				}
				out = append(out, sym)
				break
			}
		}
	}
	return out
}
