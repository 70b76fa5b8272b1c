// Package indexer turns a directory tree into persisted context
// artifacts: it discovers files, detects changes by content hash,
// chunks and embeds what changed, and keeps the store consistent when
// files disappear.
package indexer

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// PathValidator decides which discovered paths are indexable. All
// checks run on paths relative to the indexing root, slash-separated.
type PathValidator struct {
	// IgnoreGlobs are path.Match patterns tried against the relative
	// path and against every path segment (so "node_modules" ignores
	// the tree under any node_modules directory).
	IgnoreGlobs []string
	// AllowExtensions, when non-empty, is an exact allow list
	// (".go", ".md"). BlockExtensions always wins over allow.
	AllowExtensions []string
	BlockExtensions []string
	// FollowSymlinks indexes symlink targets. Off by default: a link
	// pointing outside the root would otherwise smuggle files in.
	FollowSymlinks bool
	// MaxSizeBytes rejects larger files. Zero means no limit.
	MaxSizeBytes int64
}

// DefaultValidator matches the project layouts this indexer is aimed
// at: source plus docs, skipping dependency and VCS trees.
func DefaultValidator() PathValidator {
	return PathValidator{
		IgnoreGlobs: []string{
			".git", "node_modules", "vendor", "target", "dist",
			"__pycache__", ".venv", "*.min.js",
		},
		BlockExtensions: []string{
			".png", ".jpg", ".jpeg", ".gif", ".ico", ".pdf",
			".zip", ".gz", ".tar", ".exe", ".so", ".dylib", ".bin",
		},
		MaxSizeBytes: 2 << 20,
	}
}

// Check reports whether relPath should be indexed and, when it should
// not, the reason. info may describe a symlink when the walk surfaced
// one.
func (v *PathValidator) Check(relPath string, info fs.FileInfo) (bool, string) {
	rel := filepath.ToSlash(relPath)

	for _, g := range v.IgnoreGlobs {
		if ok, _ := path.Match(g, rel); ok {
			return false, "ignored by glob " + g
		}
		for _, seg := range strings.Split(rel, "/") {
			if ok, _ := path.Match(g, seg); ok {
				return false, "ignored by glob " + g
			}
		}
	}

	if info != nil && info.Mode()&fs.ModeSymlink != 0 && !v.FollowSymlinks {
		return false, "symlink"
	}

	ext := strings.ToLower(path.Ext(rel))
	for _, b := range v.BlockExtensions {
		if ext == strings.ToLower(b) {
			return false, "blocked extension " + ext
		}
	}
	if len(v.AllowExtensions) > 0 {
		allowed := false
		for _, a := range v.AllowExtensions {
			if ext == strings.ToLower(a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, "extension not allowed: " + ext
		}
	}

	if v.MaxSizeBytes > 0 && info != nil && !info.IsDir() && info.Size() > v.MaxSizeBytes {
		return false, "file too large"
	}
	return true, ""
}
