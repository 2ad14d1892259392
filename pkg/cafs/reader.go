package cafs

import (
	"context"
	"io"

	"github.com/darianrosebrook/agent-agency/pkg/cafs/status"
)

func newChunkReader(ctx context.Context, fs *defaultFs, root Key, keys []Key) io.ReadCloser {
	return &chunkReader{
		ctx:    ctx,
		fs:     fs,
		root:   root,
		keys:   keys,
		hasher: NewHasher(),
	}
}

// chunkReader streams an object chunk by chunk, re-hashing the whole
// stream against the root key as it goes.
type chunkReader struct {
	ctx  context.Context
	fs   *defaultFs
	root Key

	keys []Key
	idx  int

	current []byte
	offset  int
	hasher  *Hasher
	done    bool
}

func (r *chunkReader) Read(data []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	read := 0
	for read < len(data) {
		if r.offset == len(r.current) {
			if r.idx == len(r.keys) {
				if err := r.finish(); err != nil {
					return read, err
				}
				if read == 0 {
					return 0, io.EOF
				}
				return read, nil
			}
			chunk, err := r.fs.chunk(r.ctx, r.keys[r.idx])
			if err != nil {
				return read, err
			}
			_, _ = r.hasher.Write(chunk)
			r.current = chunk
			r.offset = 0
			r.idx++
		}
		n := copy(data[read:], r.current[r.offset:])
		r.offset += n
		read += n
	}
	return read, nil
}

func (r *chunkReader) finish() error {
	r.done = true
	if r.fs.withVerifyHash && r.hasher.Key() != r.root {
		return status.ErrCorrupted.WrapMessage(r.root.String())
	}
	return nil
}

func (r *chunkReader) Close() error {
	return nil
}
