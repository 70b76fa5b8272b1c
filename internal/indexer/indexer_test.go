package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/internal/embedding"
	"github.com/maestro-ai/maestro/internal/store"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "maestro.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHashFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")

	got, err := HashFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	// sha256("hello"), lowercase hex.
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got)

	_, err = HashFile(filepath.Join(root, "missing.txt"))
	require.Error(t, err)
}

func TestPathValidator(t *testing.T) {
	v := DefaultValidator()

	ok, _ := v.Check("internal/auth/login.go", nil)
	require.True(t, ok)

	ok, reason := v.Check("node_modules/react/index.js", nil)
	require.False(t, ok)
	require.Contains(t, reason, "node_modules")

	ok, reason = v.Check("assets/logo.png", nil)
	require.False(t, ok)
	require.Contains(t, reason, "extension")

	allow := PathValidator{AllowExtensions: []string{".go"}}
	ok, _ = allow.Check("main.go", nil)
	require.True(t, ok)
	ok, _ = allow.Check("README.md", nil)
	require.False(t, ok)
}

func TestDiscover_SkipsIgnoredTrees(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "docs/guide.md", "# Guide")
	writeFile(t, root, "node_modules/dep/index.js", "x")
	writeFile(t, root, ".git/config", "x")

	files, err := Discover(root, DefaultValidator(), nil)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.RelPath)
	}
	require.Equal(t, []string{"docs/guide.md", "main.go"}, paths)
}

func TestDetectChanges_Lifecycle(t *testing.T) {
	root := t.TempDir()
	s := openStore(t)
	ctx := context.Background()

	writeFile(t, root, "a.go", "package a\n\nfunc A() {}\n")
	writeFile(t, root, "b.go", "package b\n")

	files := NewFileIndexer(s.Context(), embedding.NewHashEmbedder(), DefaultChunkerConfig(), 8, nil)
	batch := NewBatchIndexer(files, 2, "", nil)
	inc := NewIncrementalIndexer(root, DefaultValidator(), s.Context(), s.Context(), batch, nil)

	result, err := inc.Sync(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)
	require.Empty(t, result.Failed)

	// Second pass: nothing moved.
	result, err = inc.Sync(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.Total)
	require.Equal(t, 2, result.Unchanged)

	// Modify one, delete the other.
	writeFile(t, root, "a.go", "package a\n\nfunc A() {}\n\nfunc B() {}\n")
	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))

	result, err = inc.Sync(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)
	require.Equal(t, 1, result.Deleted)

	got, err := s.Context().FetchFileArtifactsByPath(ctx, "b.go")
	require.NoError(t, err)
	require.True(t, got.State.IsDeleted)

	// A deleted path that reappears is new again.
	writeFile(t, root, "b.go", "package b\n")
	result, err = inc.Sync(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)
}

func TestBatchIndexer_ProgressAndFailures(t *testing.T) {
	root := t.TempDir()
	s := openStore(t)
	ctx := context.Background()

	writeFile(t, root, "ok.go", "package ok\n")
	discovered, err := Discover(root, DefaultValidator(), nil)
	require.NoError(t, err)

	changes, err := DetectChanges(ctx, s.Context(), discovered)
	require.NoError(t, err)
	// A file that vanished between detection and indexing fails alone.
	changes = append(changes, Change{
		File: DiscoveredFile{AbsPath: filepath.Join(root, "gone.go"), RelPath: "gone.go"},
		Kind: ChangeNew,
	})

	files := NewFileIndexer(s.Context(), embedding.NewHashEmbedder(), DefaultChunkerConfig(), 8, nil)
	progressPath := filepath.Join(t.TempDir(), "progress.json")
	batch := NewBatchIndexer(files, 2, progressPath, nil)

	var calls int
	result, err := batch.Run(ctx, changes, func(p Progress) {
		calls++
		require.Equal(t, 2, p.Total)
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "gone.go", result.Failed[0].Path)
	require.Equal(t, 2, calls)

	data, err := os.ReadFile(progressPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"processed": 2`)
}

func TestFileIndexer_StoresArtifacts(t *testing.T) {
	root := t.TempDir()
	s := openStore(t)
	ctx := context.Background()

	writeFile(t, root, "svc.go", `package svc

// Run starts the service.
func Run() error { return nil }
`)
	discovered, err := Discover(root, DefaultValidator(), nil)
	require.NoError(t, err)
	require.Len(t, discovered, 1)

	hash, err := HashFile(discovered[0].AbsPath)
	require.NoError(t, err)

	files := NewFileIndexer(s.Context(), embedding.NewHashEmbedder(), DefaultChunkerConfig(), 8, nil)
	require.NoError(t, files.IndexFile(ctx, discovered[0], hash))

	got, err := s.Context().FetchFileArtifactsByPath(ctx, "svc.go")
	require.NoError(t, err)
	require.Equal(t, hash, got.State.ContentHash)
	require.Equal(t, "go", got.State.Language)
	require.NotEmpty(t, got.Chunks)
	require.Len(t, got.Embeddings, len(got.Chunks))
	require.NotEmpty(t, got.Symbols)
	require.Equal(t, "Run", got.Symbols[0].Name)
}
