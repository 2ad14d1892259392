package cafs

import (
	"go.uber.org/zap"
)

// Option configures a content-addressable store
type Option func(*defaultFs)

// Logger sets a logger for this store
func Logger(l *zap.Logger) Option {
	return func(f *defaultFs) {
		if l != nil {
			f.l = l
		}
	}
}

// Prefix sets the loose object area under the backend root
func Prefix(prefix string) Option {
	return func(f *defaultFs) {
		f.prefix = prefix
	}
}

// WithChunkParams sets the content-defined chunking configuration
func WithChunkParams(p ChunkParams) Option {
	return func(f *defaultFs) {
		f.params = p
	}
}

// CacheSize sets the number of chunk buffers kept in the read cache
func CacheSize(size int) Option {
	return func(f *defaultFs) {
		if size > 0 {
			f.cacheSize = size
		}
	}
}

// ConcurrentFlushes bounds parallel chunk writes during a Put
func ConcurrentFlushes(n int) Option {
	return func(f *defaultFs) {
		if n > 0 {
			f.concurrentFlushes = n
		}
	}
}

// VerifyHash enables or disables re-hashing of objects on reads
func VerifyHash(enabled bool) Option {
	return func(f *defaultFs) {
		f.withVerifyHash = enabled
	}
}

// WithLocator resolves repacked objects through a pack location index
func WithLocator(loc Locator) Option {
	return func(f *defaultFs) {
		f.locator = loc
	}
}
