package cafs

import (
	"bytes"
	"context"
	"io"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/darianrosebrook/agent-agency/pkg/cafs/status"
	"github.com/darianrosebrook/agent-agency/pkg/dlogger"
	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
	storagestatus "github.com/darianrosebrook/agent-agency/pkg/storage/status"
)

const (
	// DefaultCacheSize sets the number of chunk buffers kept in the read cache
	DefaultCacheSize = 32

	// DefaultConcurrentFlushes bounds parallel chunk writes during a Put
	DefaultConcurrentFlushes = 10
)

// PutRes holds the result from a Put operation
type PutRes struct {
	Written int64 // bytes written
	Key     Key   // the root key of the written object
	Keys    []Key // the ordered chunk keys of this object
	Found   bool  // the root key already existed
}

// Locator resolves keys whose payload has been repacked out of the loose
// object area into a pack file.
type Locator interface {
	Locate(key Key) (pack string, offset int64, length int64, ok bool)
}

// Fs implementations provide content-addressable storage operations
type Fs interface {
	Put(context.Context, io.Reader) (PutRes, error)
	Get(context.Context, Key) (io.ReadCloser, error)
	Has(context.Context, Key) (bool, error)
	Delete(context.Context, Key) error
	Keys(context.Context) ([]Key, error)
	ChunksFor(context.Context, Key) ([]Key, error)
	// Raw returns the stored object body for key without dechunking:
	// the root listing itself for multi-chunk objects, the payload for
	// single-chunk objects.
	Raw(context.Context, Key) ([]byte, error)
	Params() ChunkParams
}

var _ Fs = &defaultFs{}

func defaultsForFs() *defaultFs {
	return &defaultFs{
		params:            DefaultChunkParams(),
		concurrentFlushes: DefaultConcurrentFlushes,
		cacheSize:         DefaultCacheSize,
		l:                 dlogger.MustGetLogger(dlogger.LogLevelNone),
		withVerifyHash:    true,
		prefix:            "blobs/",
	}
}

// New creates a new instance of a content-addressable store over a backend
func New(backend storage.Store, opts ...Option) (Fs, error) {
	f := defaultsForFs()
	for _, apply := range opts {
		apply(f)
	}
	f.backend = backend

	if err := f.params.Validate(); err != nil {
		return nil, err
	}

	f.pather = func(k Key) string { return k.StringWithPrefix(f.prefix + k.String()[:2] + "/") }

	var err error
	f.cache, err = lru.New(f.cacheSize)
	if err != nil {
		return nil, err
	}
	return f, nil
}

type defaultFs struct {
	backend storage.Store
	params  ChunkParams
	l       *zap.Logger

	// prefix determines the loose object area for keys
	prefix string
	pather func(Key) string

	cache     *lru.Cache // chunk payloads, keyed by Key
	cacheSize int
	locator   Locator

	concurrentFlushes int
	withVerifyHash    bool
}

func (d *defaultFs) Params() ChunkParams {
	return d.params
}

func (d *defaultFs) Put(ctx context.Context, src io.Reader) (PutRes, error) {
	var empty PutRes

	cnk, err := NewChunker(src, d.params)
	if err != nil {
		return empty, err
	}

	hasher := NewHasher()
	keys := make([]Key, 0, 16)
	existed := make([]*bool, 0, 16)
	var written int64

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(d.concurrentFlushes)

	for {
		chunk, e := cnk.Next()
		if e == io.EOF {
			break
		}
		if e != nil {
			_ = grp.Wait()
			return empty, e
		}

		_, _ = hasher.Write(chunk.Data)
		written += int64(chunk.Length)
		keys = append(keys, chunk.Key)

		// the chunk buffer is reused by the chunker: hand a copy to the flusher
		data := make([]byte, len(chunk.Data))
		copy(data, chunk.Data)
		key := chunk.Key
		was := new(bool)
		existed = append(existed, was)
		grp.Go(func() error {
			ok, e := d.writeObject(gctx, key, data)
			*was = ok
			return e
		})
	}
	if err = grp.Wait(); err != nil {
		return empty, err
	}

	root := hasher.Key()
	lg := d.l.With(zap.Stringer("root", root), zap.Int("chunks", len(keys)))

	var found bool
	switch len(keys) {
	case 0:
		// empty stream: a single empty loose object
		found, err = d.writeObject(ctx, root, nil)
	case 1:
		// the chunk digest is the stream digest: nothing else to write.
		// Deduplication is decided by the chunk flush itself: the flush
		// already landed by now, so probing the backend here would report
		// a first-time write as found
		found = *existed[0]
	default:
		found, err = d.writeObject(ctx, root, BuildRootListing(root, keys))
	}
	if err != nil {
		return empty, err
	}

	lg.Debug("cafs put", zap.Int64("written", written), zap.Bool("found", found))

	return PutRes{
		Written: written,
		Key:     root,
		Keys:    keys,
		Found:   found,
	}, nil
}

// writeObject stores a loose object, idempotently: concurrent writers of
// identical content converge on the same key.
func (d *defaultFs) writeObject(ctx context.Context, key Key, data []byte) (bool, error) {
	pth := d.pather(key)
	has, err := d.backend.Has(ctx, pth)
	if err != nil {
		return false, err
	}
	if has {
		return true, nil
	}
	err = d.backend.Put(ctx, pth, bytes.NewReader(data), storage.NoOverWrite)
	if errors.Is(err, storagestatus.ErrExists) {
		// lost a benign race against a writer of the same content
		return true, nil
	}
	return false, err
}

func (d *defaultFs) Get(ctx context.Context, key Key) (io.ReadCloser, error) {
	data, err := d.object(ctx, key)
	if err != nil {
		return nil, err
	}

	if chunks, e := ParseRootListing(key, data); e == nil {
		return newChunkReader(ctx, d, key, chunks), nil
	}

	if d.withVerifyHash && HashBytes(data) != key {
		return nil, status.ErrCorrupted.WrapMessage(key.String())
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *defaultFs) Has(ctx context.Context, key Key) (bool, error) {
	has, err := d.backend.Has(ctx, d.pather(key))
	if err != nil {
		return false, err
	}
	if !has && d.locator != nil {
		_, _, _, ok := d.locator.Locate(key)
		return ok, nil
	}
	return has, nil
}

// Delete removes the single object stored at key. Chunks referenced by a
// root listing are separate objects with their own reachability: sweeping
// them is the garbage collector's call, not ours.
func (d *defaultFs) Delete(ctx context.Context, key Key) error {
	err := d.backend.Delete(ctx, d.pather(key))
	if errors.Is(err, storagestatus.ErrNotFound) {
		return status.ErrNotFound.WrapMessage(key.String())
	}
	d.cache.Remove(key)
	return err
}

// Keys lists every loose object key in the store
func (d *defaultFs) Keys(ctx context.Context) ([]Key, error) {
	result := make([]Key, 0, 64)
	token := ""
	for {
		batch, next, err := d.backend.KeysPrefix(ctx, token, d.prefix, "", 1024)
		if err != nil {
			return nil, err
		}
		for _, pth := range batch {
			k, err := keyFromPath(pth)
			if err != nil {
				continue // not an object path
			}
			result = append(result, k)
		}
		if next == "" {
			return result, nil
		}
		token = next
	}
}

// ChunksFor resolves the chunk keys behind a root key. Single-chunk
// objects have no separate chunks.
func (d *defaultFs) ChunksFor(ctx context.Context, key Key) ([]Key, error) {
	data, err := d.object(ctx, key)
	if err != nil {
		return nil, err
	}
	chunks, e := ParseRootListing(key, data)
	if e != nil {
		return nil, nil
	}
	return chunks, nil
}

func (d *defaultFs) Raw(ctx context.Context, key Key) ([]byte, error) {
	return d.object(ctx, key)
}

// object fetches a whole object body, looking at the loose area first,
// then at pack files through the locator.
func (d *defaultFs) object(ctx context.Context, key Key) ([]byte, error) {
	data, err := storage.ReadAllObject(ctx, d.backend, d.pather(key))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, storagestatus.ErrNotFound) {
		return nil, err
	}
	if d.locator == nil {
		return nil, status.ErrNotFound.WrapMessage(key.String())
	}
	pack, offset, length, ok := d.locator.Locate(key)
	if !ok {
		return nil, status.ErrNotFound.WrapMessage(key.String())
	}
	return d.readPackSegment(ctx, pack, offset, length)
}

func (d *defaultFs) readPackSegment(ctx context.Context, pack string, offset, length int64) ([]byte, error) {
	rdr, err := d.backend.Get(ctx, pack)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rdr.Close()
	}()
	if _, err = io.CopyN(io.Discard, rdr, offset); err != nil {
		return nil, err
	}
	data := make([]byte, length)
	if _, err = io.ReadFull(rdr, data); err != nil {
		return nil, err
	}
	return data, nil
}

// chunk fetches one chunk body with cache and integrity check
func (d *defaultFs) chunk(ctx context.Context, key Key) ([]byte, error) {
	if b, ok := d.cache.Get(key); ok {
		return b.([]byte), nil
	}
	data, err := d.object(ctx, key)
	if err != nil {
		return nil, err
	}
	if d.withVerifyHash && HashBytes(data) != key {
		return nil, status.ErrCorrupted.WrapMessage(key.String())
	}
	d.cache.Add(key, data)
	return data, nil
}

func keyFromPath(pth string) (Key, error) {
	idx := len(pth) - KeySizeHex
	if idx < 0 {
		return Key{}, &BadKeySize{Key: []byte(pth)}
	}
	return KeyFromString(pth[idx:])
}
