// Package localfs implements a Store on a local file system, via afero.
//
// Production stores run over an OS filesystem; tests typically run over
// an in-memory afero filesystem.
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/darianrosebrook/agent-agency/pkg/storage"
	"github.com/darianrosebrook/agent-agency/pkg/storage/status"
	"github.com/spf13/afero"
)

// New creates a new local file system backed storage store
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".recovery", "objects"))
	}
	return &localFS{
		fs: fs,
	}
}

type localFS struct {
	fs afero.Fs
}

func (l *localFS) String() string {
	return "localfs"
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

type localReader struct {
	objectReader io.ReadCloser
}

func (r localReader) WriteTo(writer io.Writer) (n int64, err error) {
	return storage.PipeIO(writer, r.objectReader)
}

func (r localReader) Close() error {
	return r.objectReader.Close()
}

func (r localReader) Read(p []byte) (n int, err error) {
	return r.objectReader.Read(p)
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotFound
	}
	t, err := l.fs.Open(key)
	if err != nil {
		return nil, err
	}
	return localReader{
		objectReader: t,
	}, nil
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	dir := filepath.Dir(key)
	if dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return status.ErrStorageAPI.WrapMessage("ensuring directories for " + key).Wrap(err)
		}
	}
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC | os.O_SYNC
	if exclusive {
		flag |= os.O_EXCL
	}
	target, err := l.fs.OpenFile(key, flag, 0600)
	if err != nil {
		if os.IsExist(err) {
			return status.ErrExists
		}
		return status.ErrStorageAPI.WrapMessage("create object for " + key).Wrap(err)
	}
	// if the reader can write itself out, let it
	if wt, ok := source.(io.WriterTo); ok {
		_, err = wt.WriteTo(target)
	} else {
		_, err = storage.PipeIO(target, source)
	}
	if err != nil {
		_ = target.Close()
		return status.ErrStorageAPI.WrapMessage("write object for " + key).Wrap(err)
	}
	if err = target.Sync(); err != nil {
		_ = target.Close()
		return err
	}
	if err = target.Close(); err != nil {
		return err
	}
	return l.SyncObject(ctx, key)
}

// SyncObject fsyncs the directory containing the object after create or
// rename, so that the entry itself survives power loss.
func (l *localFS) SyncObject(_ context.Context, key string) error {
	dir := filepath.Dir(key)
	if dir == "" {
		dir = "."
	}
	d, err := l.fs.Open(dir)
	if err != nil {
		return nil // backend without directory handles (e.g. memfs)
	}
	_ = d.Sync()
	return d.Close()
}

func (l *localFS) Delete(ctx context.Context, key string) error {
	if err := l.fs.Remove(key); err != nil {
		if os.IsNotExist(err) {
			return status.ErrNotFound
		}
		return status.ErrStorageAPI.WrapMessage("removing object " + key).Wrap(err)
	}
	return nil
}

func (l *localFS) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := afero.Walk(l.fs, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info == nil || info.IsDir() {
			return nil
		}
		keys = append(keys, filepath.ToSlash(path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// KeysPrefix paginates over keys with a given prefix, in lexicographic order.
// The returned next token is the key to resume from, empty when exhausted.
func (l *localFS) KeysPrefix(ctx context.Context, token, prefix, _ string, count int) ([]string, string, error) {
	all, err := l.Keys(ctx)
	if err != nil {
		return nil, "", err
	}
	keys := make([]string, 0, count)
	for _, k := range all {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		if token != "" && k < token {
			continue
		}
		if len(keys) == count {
			return keys, k, nil
		}
		keys = append(keys, k)
	}
	return keys, "", nil
}

func (l *localFS) Clear(ctx context.Context) error {
	return l.fs.RemoveAll("/")
}
