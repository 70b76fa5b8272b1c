package indexer

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/logging"
)

// languageByExt maps file extensions to language names used in stored
// artifacts and retrieval filters.
var languageByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".rs":   "rust",
	".java": "java",
	".kt":   "kotlin",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".rb":   "ruby",
	".sh":   "shell",
	".sql":  "sql",
	".md":   "markdown",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".toml": "toml",
}

// LanguageOf returns the language for a relative path, or "" when
// unknown.
func LanguageOf(relPath string) string {
	return languageByExt[filepath.Ext(relPath)]
}

// KindOf classifies a path for storage and retrieval filtering.
func KindOf(relPath string) string {
	switch LanguageOf(relPath) {
	case "markdown":
		return "doc"
	case "":
		return "other"
	default:
		return "code"
	}
}

// DiscoveredFile is one indexable file found under a root.
type DiscoveredFile struct {
	AbsPath   string
	RelPath   string // slash-separated, relative to the root
	SizeBytes int64
	MtimeNs   int64
}

// Discover walks root and returns the validated files sorted by
// relative path. Directory read errors skip the subtree; they do not
// abort the walk.
func Discover(root string, validator PathValidator, logger *logging.Logger) ([]DiscoveredFile, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, core.ErrIndexing(root, err)
	}
	if _, err := os.Stat(absRoot); err != nil {
		return nil, core.ErrNotFound("ROOT_NOT_FOUND", "indexing root does not exist").
			WithDetail("root", root)
	}

	seen := make(map[string]struct{})
	var out []DiscoveredFile
	walkErr := filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable path", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(absRoot, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			logger.Warn("skipping unstatable path", "path", p, "error", err)
			return nil
		}
		ok, reason := validator.Check(rel, info)
		if !ok {
			if d.IsDir() {
				return filepath.SkipDir
			}
			logger.Debug("path rejected", "path", rel, "reason", reason)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			if d.Type()&fs.ModeSymlink == 0 || !validator.FollowSymlinks {
				return nil
			}
			// Resolved symlink target.
			info, err = os.Stat(p)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		}
		if _, dup := seen[rel]; dup {
			return nil
		}
		seen[rel] = struct{}{}
		out = append(out, DiscoveredFile{
			AbsPath:   p,
			RelPath:   rel,
			SizeBytes: info.Size(),
			MtimeNs:   info.ModTime().UnixNano(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, core.ErrIndexing(root, walkErr)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}
