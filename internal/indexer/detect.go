package indexer

import (
	"context"

	"github.com/maestro-ai/maestro/internal/core"
)

// ChangeKind classifies a file relative to its stored state.
type ChangeKind string

const (
	ChangeNew       ChangeKind = "new"
	ChangeModified  ChangeKind = "modified"
	ChangeUnchanged ChangeKind = "unchanged"
	ChangeDeleted   ChangeKind = "deleted"
)

// Change pairs a path with its detected state. Hash is the current
// on-disk content hash and is empty for deletions.
type Change struct {
	File DiscoveredFile
	Kind ChangeKind
	Hash string
}

// DetectChanges hashes each discovered file and compares against the
// stored file states. Files present in the store (and not tombstoned)
// but absent from disk come back as deletions. Hash failures surface
// as the error; detection is all-or-nothing so a partial view never
// drives deletion propagation.
func DetectChanges(ctx context.Context, reader core.ContextReader, discovered []DiscoveredFile) ([]Change, error) {
	states, err := reader.ListFileStates(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]core.FileState, len(states))
	for _, s := range states {
		known[s.RelativePath] = s
	}

	changes := make([]Change, 0, len(discovered))
	onDisk := make(map[string]struct{}, len(discovered))
	for _, f := range discovered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		onDisk[f.RelPath] = struct{}{}

		hash, err := HashFile(f.AbsPath)
		if err != nil {
			return nil, err
		}
		prev, ok := known[f.RelPath]
		switch {
		case !ok || prev.IsDeleted:
			changes = append(changes, Change{File: f, Kind: ChangeNew, Hash: hash})
		case prev.ContentHash != hash:
			changes = append(changes, Change{File: f, Kind: ChangeModified, Hash: hash})
		default:
			changes = append(changes, Change{File: f, Kind: ChangeUnchanged, Hash: hash})
		}
	}

	for _, s := range states {
		if s.IsDeleted {
			continue
		}
		if _, ok := onDisk[s.RelativePath]; !ok {
			changes = append(changes, Change{
				File: DiscoveredFile{RelPath: s.RelativePath},
				Kind: ChangeDeleted,
			})
		}
	}
	return changes, nil
}
