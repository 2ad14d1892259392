package model

import (
	"time"

	"gopkg.in/yaml.v2"
)

const commitKind = "commit"

// Commit snapshots a tree at a point in a task's history.
//
// History is singly linked: one optional parent. Concurrent lines of work
// are distinct refs over the shared object graph, not multi-parent merges.
type Commit struct {
	Kind      string    `json:"kind" yaml:"kind"`
	Version   uint64    `json:"version" yaml:"version"`
	Tree      string    `json:"tree" yaml:"tree"`
	Parent    string    `json:"parent,omitempty" yaml:"parent,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	TaskID    string    `json:"taskId" yaml:"taskId"`
	Author    string    `json:"author,omitempty" yaml:"author,omitempty"`
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
	_         struct{}
}

// NewCommit builds a commit over a tree digest. The timestamp is forced to
// UTC so that serialization is reproducible wherever it is re-read.
func NewCommit(tree, parent, taskID, author, message string, at time.Time) *Commit {
	return &Commit{
		Kind:      commitKind,
		Version:   CurrentCommitVersion,
		Tree:      tree,
		Parent:    parent,
		Timestamp: at.UTC().Truncate(time.Microsecond),
		TaskID:    taskID,
		Author:    author,
		Message:   message,
	}
}

// Serialize renders the canonical bytes of a commit
func (c *Commit) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// UnmarshalCommit decodes and validates a serialized commit
func UnmarshalCommit(data []byte) (*Commit, error) {
	var c Commit
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Kind != commitKind {
		return nil, ErrInvalidKind.WrapMessage(c.Kind)
	}
	if c.Version == 0 || c.Version > CurrentCommitVersion {
		return nil, ErrVersionMismatch
	}
	if c.Tree == "" {
		return nil, ErrInvalidEntry.WrapMessage("commit without tree")
	}
	return &c, nil
}
