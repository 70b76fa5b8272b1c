package core

import "time"

// FileState records the last indexed state of one file. Paths are stored
// relative to the indexing root; filesystem APIs deal in absolute paths and
// the indexer converts at its boundary.
type FileState struct {
	FileID      int64
	RelativePath string
	ContentHash string // lowercase hex sha-256
	SizeBytes   int64
	MtimeNs     int64
	Language    string
	Kind        string
	Fingerprint string
	IndexedAt   time.Time
	IsDeleted   bool
}

// ChunkKind classifies a chunk's origin.
type ChunkKind string

const (
	ChunkKindCode     ChunkKind = "code"
	ChunkKindMarkdown ChunkKind = "markdown"
	ChunkKindDoc      ChunkKind = "doc"
	ChunkKindOther    ChunkKind = "other"
)

// Chunk is a contiguous region of a file, the atomic unit of embedding and
// retrieval. (FileID, Ordinal) is unique.
type Chunk struct {
	ChunkID       int64
	FileID        int64
	Ordinal       int
	Kind          ChunkKind
	StartLine     int // 0 when unknown
	EndLine       int
	TokenEstimate int
	Content       string
	Summary       string
	CreatedAt     time.Time
}

// EstimateTokens returns the chunk's token estimate, falling back to
// ceil(len/4) when none was recorded.
func (c *Chunk) EstimateTokens() int {
	if c.TokenEstimate > 0 {
		return c.TokenEstimate
	}
	return (len(c.Content) + 3) / 4
}

// Embedding is a stored vector for one chunk. len(Vector) == Dimensions.
type Embedding struct {
	EmbeddingID int64
	ChunkID     int64
	Model       string
	Dimensions  int
	Vector      []float32
	CreatedAt   time.Time
}

// Link relates a source chunk to a target file or chunk. Links carry IDs
// only; ownership is a tree rooted at FileState.
type Link struct {
	LinkID        int64
	SourceChunkID int64
	TargetFileID  int64
	TargetChunkID int64 // 0 when the link targets a whole file
	Type          string
	Label         string
	Score         float64
	CreatedAt     time.Time
}

// SymbolType classifies an extracted symbol.
type SymbolType string

const (
	SymbolClass     SymbolType = "class"
	SymbolInterface SymbolType = "interface"
	SymbolFunction  SymbolType = "function"
	SymbolMethod    SymbolType = "method"
	SymbolProperty  SymbolType = "property"
	SymbolVariable  SymbolType = "variable"
	SymbolImport    SymbolType = "import"
)

// Symbol is a named declaration extracted from a file. Symbols reference
// chunks and files but do not own them.
type Symbol struct {
	SymbolID      int64
	FileID        int64
	ChunkID       int64
	Type          SymbolType
	Name          string
	QualifiedName string
	Signature     string
	StartLine     int
	EndLine       int
	Language      string
}

// FileArtifacts is the full persisted artifact set for one file.
type FileArtifacts struct {
	State      FileState
	Chunks     []Chunk
	Embeddings []Embedding
	Links      []Link
	Symbols    []Symbol
}

// ContextScope restricts retrieval to part of the indexed corpus.
type ContextScope struct {
	PathPrefixes []string
	Languages    []string
	Kinds        []string
}

// TokenBudget caps the size of a retrieval response.
type TokenBudget struct {
	AvailableForSnippets int
}

// ContextSnippet is one retrieval result.
type ContextSnippet struct {
	ChunkID       int64
	FileID        int64
	Path          string
	Language      string
	Content       string
	Score         float64 // [0,1]
	TokenEstimate int
	Metadata      map[string]string
}
