package core

import (
	"context"

	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/refs"
)

// CommitInfo pairs a commit with its digest for history listings
type CommitInfo struct {
	Digest string        `json:"digest" yaml:"digest"`
	Commit *model.Commit `json:"commit" yaml:"commit"`
}

// ListRefs enumerates every ref with the commit digest it points at
func (s *Store) ListRefs(ctx context.Context) ([]refs.Ref, error) {
	if err := s.isClosed(); err != nil {
		return nil, err
	}
	s.gov.RLock()
	defer s.gov.RUnlock()
	return s.refTable.List(ctx)
}

// Log walks the parent chain from refOrDigest, newest first. limit <= 0
// walks the chain to its root.
func (s *Store) Log(ctx context.Context, refOrDigest string, limit int) ([]CommitInfo, error) {
	if err := s.isClosed(); err != nil {
		return nil, err
	}
	s.gov.RLock()
	defer s.gov.RUnlock()

	digest, err := s.Resolve(ctx, refOrDigest)
	if err != nil {
		return nil, err
	}

	var history []CommitInfo
	for digest != "" {
		if limit > 0 && len(history) >= limit {
			break
		}
		commit, err := s.readCommit(ctx, digest)
		if err != nil {
			return nil, err
		}
		history = append(history, CommitInfo{Digest: digest, Commit: commit})
		digest = commit.Parent
	}
	return history, nil
}

// DeleteRef removes a ref. The commits behind it stay on disk until gc,
// which is how retention ends for a task's snapshots.
func (s *Store) DeleteRef(ctx context.Context, name string) error {
	if err := s.isClosed(); err != nil {
		return err
	}
	s.gov.RLock()
	defer s.gov.RUnlock()
	return s.refTable.Delete(ctx, name)
}
