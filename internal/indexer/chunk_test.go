package indexer

import (
	"strings"
	"testing"

	"github.com/maestro-ai/maestro/internal/core"
)

func TestChunkFile_MarkdownSplitsOnHeadings(t *testing.T) {
	content := "# Title\n\nintro paragraph\n\n## Setup\n\nsteps here\n\n## Usage\n\nexamples here\n"
	chunks := ChunkFile("docs/readme.md", content, DefaultChunkerConfig())

	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.Ordinal != i {
			t.Fatalf("chunk %d has ordinal %d", i, c.Ordinal)
		}
		if c.Kind != core.ChunkKindMarkdown {
			t.Fatalf("chunk %d kind = %s", i, c.Kind)
		}
		if c.TokenEstimate <= 0 {
			t.Fatalf("chunk %d missing token estimate", i)
		}
	}
	if !strings.HasPrefix(chunks[1].Content, "## Setup") {
		t.Fatalf("second chunk should start at heading, got %q", chunks[1].Content)
	}
}

func TestChunkFile_CodeSplitsOnDeclarations(t *testing.T) {
	content := `package auth

import "errors"

// Login authenticates a user.
// It returns a session token.
func Login(user string) (string, error) {
	return "", errors.New("todo")
}

// Logout ends the session.
func Logout(token string) error {
	return nil
}
`
	chunks := ChunkFile("internal/auth/auth.go", content, DefaultChunkerConfig())

	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3 (header, Login, Logout)", len(chunks))
	}
	if !strings.HasPrefix(chunks[1].Content, "// Login authenticates") {
		t.Fatalf("doc comment must stay with its declaration, got %q", chunks[1].Content)
	}
	if chunks[1].StartLine != 5 {
		t.Fatalf("Login chunk starts at %d, want 5", chunks[1].StartLine)
	}
}

func TestChunkFile_OversizedSectionFallsBackToWindow(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Big\n")
	for i := 0; i < 400; i++ {
		sb.WriteString("a line with a reasonable amount of words in it\n")
	}
	chunks := ChunkFile("big.md", sb.String(), ChunkerConfig{MaxTokens: 128})

	if len(chunks) < 2 {
		t.Fatalf("oversized section should split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if c.TokenEstimate > 128+16 {
			t.Fatalf("chunk %d estimate %d blows the window", i, c.TokenEstimate)
		}
	}
}

func TestChunkFile_Empty(t *testing.T) {
	if got := ChunkFile("x.go", "  \n ", DefaultChunkerConfig()); got != nil {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
}

func TestExtractSymbols_Go(t *testing.T) {
	content := `package auth

type Session struct{}

type Store interface{}

func Login(u string) error { return nil }

func (s *Session) Refresh() error { return nil }
`
	chunks := ChunkFile("auth.go", content, DefaultChunkerConfig())
	symbols := ExtractSymbols("auth.go", chunks)

	byName := map[string]core.Symbol{}
	for _, s := range symbols {
		byName[s.Name] = s
	}
	if byName["Session"].Type != core.SymbolClass {
		t.Fatalf("Session type = %v", byName["Session"].Type)
	}
	if byName["Store"].Type != core.SymbolInterface {
		t.Fatalf("Store type = %v", byName["Store"].Type)
	}
	if byName["Login"].Type != core.SymbolFunction {
		t.Fatalf("Login type = %v", byName["Login"].Type)
	}
	m, ok := byName["Refresh"]
	if !ok || m.Type != core.SymbolMethod {
		t.Fatalf("Refresh = %+v", m)
	}
	if m.QualifiedName != "Session.Refresh" {
		t.Fatalf("qualified name = %q", m.QualifiedName)
	}
}

func TestExtractSymbols_UnknownLanguage(t *testing.T) {
	chunks := []core.Chunk{{Ordinal: 0, Content: "whatever"}}
	if got := ExtractSymbols("data.csv", chunks); got != nil {
		t.Fatalf("expected no symbols for unknown language, got %d", len(got))
	}
}

func TestExtractSymbols_Python(t *testing.T) {
	content := "class Handler:\n    def process(self):\n        pass\n"
	chunks := ChunkFile("handler.py", content, DefaultChunkerConfig())
	symbols := ExtractSymbols("handler.py", chunks)

	var haveClass, haveFunc bool
	for _, s := range symbols {
		switch {
		case s.Name == "Handler" && s.Type == core.SymbolClass:
			haveClass = true
		case s.Name == "process" && s.Type == core.SymbolFunction:
			haveFunc = true
		}
	}
	if !haveClass || !haveFunc {
		t.Fatalf("missing python symbols: %+v", symbols)
	}
}
