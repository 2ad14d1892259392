package model

import (
	"sort"

	"gopkg.in/yaml.v2"
)

// EntryKind discriminates tree entry types
type EntryKind string

const (
	// KindFile is a regular file entry
	KindFile EntryKind = "file"
	// KindDir is a directory entry pointing at a child tree
	KindDir EntryKind = "dir"
	// KindSymlink is a symbolic link entry
	KindSymlink EntryKind = "symlink"
)

func (k EntryKind) valid() bool {
	return k == KindFile || k == KindDir || k == KindSymlink
}

// TreeEntry names one child of a directory snapshot
type TreeEntry struct {
	Name   string    `json:"name" yaml:"name"`
	Kind   EntryKind `json:"kind" yaml:"kind"`
	Mode   uint32    `json:"mode" yaml:"mode"`
	Digest string    `json:"digest,omitempty" yaml:"digest,omitempty"` // blob or child tree
	Size   int64     `json:"size,omitempty" yaml:"size,omitempty"`
	Target string    `json:"target,omitempty" yaml:"target,omitempty"` // symlink target
	_      struct{}
}

// Tree is a canonically ordered, duplicate-free directory snapshot
type Tree struct {
	Kind    string      `json:"kind" yaml:"kind"`
	Version uint64      `json:"version" yaml:"version"`
	Entries []TreeEntry `json:"entries" yaml:"entries"`
	_       struct{}
}

const treeKind = "tree"

// NewTree canonicalizes entries into a tree: sorted by name, unique names,
// all entries well formed.
func NewTree(entries []TreeEntry) (*Tree, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for i, e := range sorted {
		if e.Name == "" || !e.Kind.valid() {
			return nil, ErrInvalidEntry.WrapMessage(e.Name)
		}
		if e.Kind == KindSymlink && e.Target == "" {
			return nil, ErrInvalidEntry.WrapMessage(e.Name)
		}
		if e.Kind != KindSymlink && e.Digest == "" {
			return nil, ErrInvalidEntry.WrapMessage(e.Name)
		}
		if i > 0 && sorted[i-1].Name == e.Name {
			return nil, ErrDuplicateEntry.WrapMessage(e.Name)
		}
	}
	return &Tree{
		Kind:    treeKind,
		Version: CurrentTreeVersion,
		Entries: sorted,
	}, nil
}

// Serialize renders the canonical bytes of a tree: the digest of a tree is
// the digest of this serialization.
func (t *Tree) Serialize() ([]byte, error) {
	return yaml.Marshal(t)
}

// UnmarshalTree decodes and validates a serialized tree
func UnmarshalTree(data []byte) (*Tree, error) {
	var t Tree
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.Kind != treeKind {
		return nil, ErrInvalidKind.WrapMessage(t.Kind)
	}
	if t.Version == 0 || t.Version > CurrentTreeVersion {
		return nil, ErrVersionMismatch
	}
	// a stored tree must already be canonical
	for i, e := range t.Entries {
		if e.Name == "" || !e.Kind.valid() {
			return nil, ErrInvalidEntry.WrapMessage(e.Name)
		}
		if i > 0 && t.Entries[i-1].Name >= e.Name {
			return nil, ErrInvalidEntry.WrapMessage("entries out of canonical order")
		}
	}
	return &t, nil
}
