package core

import (
	"context"
	"path"

	"github.com/darianrosebrook/agent-agency/pkg/model"
)

// ChangeKind classifies one path in a snapshot comparison
type ChangeKind string

const (
	// Added paths exist only in the newer snapshot
	Added ChangeKind = "added"
	// Removed paths exist only in the older snapshot
	Removed ChangeKind = "removed"
	// Modified paths exist in both with different content, mode or kind
	Modified ChangeKind = "modified"
	// Unchanged paths carry identical content in both snapshots
	Unchanged ChangeKind = "unchanged"
)

// Change is one path-level difference between two snapshots
type Change struct {
	Path string     `json:"path" yaml:"path"`
	Kind ChangeKind `json:"kind" yaml:"kind"`
	Old  string     `json:"old,omitempty" yaml:"old,omitempty"`
	New  string     `json:"new,omitempty" yaml:"new,omitempty"`
}

// Diff compares two snapshots and returns file-level changes in canonical
// path order. Subtrees with identical digests are skipped without descending
// into them, so the cost scales with the size of the difference, not the
// size of the snapshots.
func (s *Store) Diff(ctx context.Context, older, newer string) ([]Change, error) {
	if err := s.isClosed(); err != nil {
		return nil, err
	}
	s.gov.RLock()
	defer s.gov.RUnlock()

	oldDigest, err := s.Resolve(ctx, older)
	if err != nil {
		return nil, err
	}
	newDigest, err := s.Resolve(ctx, newer)
	if err != nil {
		return nil, err
	}
	oldTree, err := s.resolveTree(ctx, oldDigest)
	if err != nil {
		return nil, err
	}
	newTree, err := s.resolveTree(ctx, newDigest)
	if err != nil {
		return nil, err
	}
	if oldTree == newTree {
		return nil, nil
	}

	var changes []Change
	if err = s.diffTrees(ctx, oldTree, newTree, ".", &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

func (s *Store) diffTrees(ctx context.Context, oldDigest, newDigest, dir string, out *[]Change) error {
	oldTree, err := s.readTree(ctx, oldDigest)
	if err != nil {
		return err
	}
	newTree, err := s.readTree(ctx, newDigest)
	if err != nil {
		return err
	}

	// both entry lists are canonically sorted, walk them zipper-style
	oldEntries, newEntries := oldTree.Entries, newTree.Entries
	i, j := 0, 0
	for i < len(oldEntries) || j < len(newEntries) {
		switch {
		case i >= len(oldEntries):
			if err = s.emitAll(ctx, newEntries[j], dir, Added, out); err != nil {
				return err
			}
			j++
		case j >= len(newEntries):
			if err = s.emitAll(ctx, oldEntries[i], dir, Removed, out); err != nil {
				return err
			}
			i++
		case oldEntries[i].Name < newEntries[j].Name:
			if err = s.emitAll(ctx, oldEntries[i], dir, Removed, out); err != nil {
				return err
			}
			i++
		case oldEntries[i].Name > newEntries[j].Name:
			if err = s.emitAll(ctx, newEntries[j], dir, Added, out); err != nil {
				return err
			}
			j++
		default:
			if err = s.diffEntry(ctx, oldEntries[i], newEntries[j], dir, out); err != nil {
				return err
			}
			i++
			j++
		}
	}
	return nil
}

func (s *Store) diffEntry(ctx context.Context, oldEntry, newEntry model.TreeEntry, dir string, out *[]Change) error {
	full := path.Join(dir, oldEntry.Name)

	if oldEntry.Kind != newEntry.Kind {
		if err := s.emitAll(ctx, oldEntry, dir, Removed, out); err != nil {
			return err
		}
		return s.emitAll(ctx, newEntry, dir, Added, out)
	}

	switch oldEntry.Kind {
	case model.KindDir:
		if oldEntry.Digest == newEntry.Digest {
			return nil
		}
		return s.diffTrees(ctx, oldEntry.Digest, newEntry.Digest, full, out)
	case model.KindSymlink:
		if oldEntry.Target != newEntry.Target {
			*out = append(*out, Change{Path: full, Kind: Modified})
		}
	default:
		if oldEntry.Digest != newEntry.Digest || oldEntry.Mode != newEntry.Mode {
			*out = append(*out, Change{Path: full, Kind: Modified, Old: oldEntry.Digest, New: newEntry.Digest})
		}
	}
	return nil
}

// emitAll records every file under entry as kind, descending into subtrees
func (s *Store) emitAll(ctx context.Context, entry model.TreeEntry, dir string, kind ChangeKind, out *[]Change) error {
	full := path.Join(dir, entry.Name)
	if entry.Kind != model.KindDir {
		c := Change{Path: full, Kind: kind}
		if kind == Removed {
			c.Old = entry.Digest
		} else {
			c.New = entry.Digest
		}
		*out = append(*out, c)
		return nil
	}
	tree, err := s.readTree(ctx, entry.Digest)
	if err != nil {
		return err
	}
	for _, child := range tree.Entries {
		if err = s.emitAll(ctx, child, full, kind, out); err != nil {
			return err
		}
	}
	return nil
}
