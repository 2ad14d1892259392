package storage

import (
	"context"
	"io"
)

const (
	// MaxObjectSizeInMemory is the max size of an object we are willing to read in one buffer
	MaxObjectSizeInMemory = 2 * 1024 * 1024 * 1024 // 2 gigs

	// OverWrite indicates that a Put may replace an existing object
	OverWrite = false

	// NoOverWrite indicates that a Put must fail if the object already exists
	NoOverWrite = true
)

// Store implementations know how to write entries to a K/V store.
//
// Typically this is something file system-like. Implementations of this
// interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	KeysPrefix(ctx context.Context, token, prefix, delimiter string, count int) ([]string, string, error)
	Clear(context.Context) error
}

// Syncable stores know how to force durability of an object and of the
// directory structure leading to it. Backends that cannot guarantee this
// (e.g. in-memory test stores) simply don't implement it.
type Syncable interface {
	SyncObject(ctx context.Context, key string) error
}

// PipeIO copies a reader out to a writer with a fixed-size buffer
func PipeIO(writer io.Writer, reader io.Reader) (n int64, err error) {
	pr, pw := io.Pipe()
	errC := make(chan error, 1)
	go func() {
		defer pw.Close()
		_, err := io.Copy(pw, reader)
		errC <- err
	}()
	written, err := io.Copy(writer, pr)
	if err != nil {
		return written, err
	}
	if err = <-errC; err != nil {
		return written, err
	}
	return written, nil
}

// ReadAllObject reads a whole object in memory
func ReadAllObject(ctx context.Context, store Store, key string) ([]byte, error) {
	rdr, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	b, err := io.ReadAll(rdr)
	if err != nil {
		_ = rdr.Close()
		return nil, err
	}
	if err = rdr.Close(); err != nil {
		return nil, err
	}
	return b, nil
}
