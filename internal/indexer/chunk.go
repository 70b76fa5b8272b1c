package indexer

import (
	"regexp"
	"strings"

	"github.com/maestro-ai/maestro/internal/core"
)

// ChunkerConfig bounds chunk sizes. Token counts use the ceil(len/4)
// estimate everywhere so limits match what retrieval later budgets.
type ChunkerConfig struct {
	MaxTokens int
}

// DefaultChunkerConfig keeps chunks well under typical model context
// slices.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{MaxTokens: 512}
}

func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// ChunkFile splits content into chunks for a file. Markdown splits on
// heading boundaries, code on declaration boundaries; anything else
// falls back to a fixed token window. Ordinals are assigned in document
// order starting at zero.
func ChunkFile(relPath, content string, cfg ChunkerConfig) []core.Chunk {
	if cfg.MaxTokens <= 0 {
		cfg = DefaultChunkerConfig()
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var chunks []core.Chunk
	switch KindOf(relPath) {
	case "doc":
		chunks = chunkMarkdown(content, cfg)
	case "code":
		chunks = chunkCode(relPath, content, cfg)
	default:
		chunks = chunkWindow(content, 1, core.ChunkKindOther, cfg)
	}
	for i := range chunks {
		chunks[i].Ordinal = i
		chunks[i].TokenEstimate = estimateTokens(chunks[i].Content)
	}
	return chunks
}

var headingRe = regexp.MustCompile(`^#{1,6}\s`)

// chunkMarkdown splits on heading lines. A section larger than
// MaxTokens is re-split by window while keeping its heading in the
// first piece.
func chunkMarkdown(content string, cfg ChunkerConfig) []core.Chunk {
	lines := strings.Split(content, "\n")

	var sections [][2]int // [startLine, endLine) in 1-based lines
	start := 0
	for i, line := range lines {
		if i > 0 && headingRe.MatchString(line) {
			sections = append(sections, [2]int{start, i})
			start = i
		}
	}
	sections = append(sections, [2]int{start, len(lines)})

	var out []core.Chunk
	for _, sec := range sections {
		text := strings.Join(lines[sec[0]:sec[1]], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if estimateTokens(text) <= cfg.MaxTokens {
			out = append(out, core.Chunk{
				Kind:      core.ChunkKindMarkdown,
				StartLine: sec[0] + 1,
				EndLine:   sec[1],
				Content:   text,
			})
			continue
		}
		out = append(out, chunkWindow(text, sec[0]+1, core.ChunkKindMarkdown, cfg)...)
	}
	return out
}

// declRe matches declaration openers across the supported languages:
// Go/Rust/JS functions, Python defs, classes, interfaces, and type
// declarations. It anchors at line start so bodies do not split.
var declRe = regexp.MustCompile(`^(func |def |class |interface |type \w+ (struct|interface)|(pub )?fn |(export )?(async )?function |impl )`)

var docCommentRe = regexp.MustCompile(`^\s*(//|#|/\*|\*|"""|''')`)

// chunkCode splits on declaration boundaries, pulling the doc comment
// block immediately above a declaration into that declaration's chunk.
func chunkCode(relPath, content string, cfg ChunkerConfig) []core.Chunk {
	lines := strings.Split(content, "\n")

	var boundaries []int
	for i, line := range lines {
		if !declRe.MatchString(line) {
			continue
		}
		b := i
		for b > 0 && docCommentRe.MatchString(lines[b-1]) && strings.TrimSpace(lines[b-1]) != "" {
			b--
		}
		boundaries = append(boundaries, b)
	}
	if len(boundaries) == 0 {
		return chunkWindow(content, 1, core.ChunkKindCode, cfg)
	}
	if boundaries[0] != 0 {
		boundaries = append([]int{0}, boundaries...)
	}

	var out []core.Chunk
	for i, b := range boundaries {
		end := len(lines)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		if end <= b {
			continue
		}
		text := strings.Join(lines[b:end], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if estimateTokens(text) <= cfg.MaxTokens {
			out = append(out, core.Chunk{
				Kind:      core.ChunkKindCode,
				StartLine: b + 1,
				EndLine:   end,
				Content:   text,
			})
			continue
		}
		out = append(out, chunkWindow(text, b+1, core.ChunkKindCode, cfg)...)
	}
	return out
}

// chunkWindow splits text into fixed token windows on line boundaries.
// firstLine is the 1-based line number of the text's first line in the
// enclosing file.
func chunkWindow(text string, firstLine int, kind core.ChunkKind, cfg ChunkerConfig) []core.Chunk {
	lines := strings.Split(text, "\n")

	var out []core.Chunk
	start := 0
	budget := 0
	for i, line := range lines {
		cost := estimateTokens(line) + 1
		if budget+cost > cfg.MaxTokens && i > start {
			out = append(out, core.Chunk{
				Kind:      kind,
				StartLine: firstLine + start,
				EndLine:   firstLine + i - 1,
				Content:   strings.Join(lines[start:i], "\n"),
			})
			start = i
			budget = 0
		}
		budget += cost
	}
	if start < len(lines) {
		tail := strings.Join(lines[start:], "\n")
		if strings.TrimSpace(tail) != "" {
			out = append(out, core.Chunk{
				Kind:      kind,
				StartLine: firstLine + start,
				EndLine:   firstLine + len(lines) - 1,
				Content:   tail,
			})
		}
	}
	return out
}
