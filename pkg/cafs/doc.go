// Package cafs provides content-addressable storage of byte streams.
//
// Streams are split into content-defined chunks (rolling hash boundaries),
// each chunk stored under its own blake2b digest. A stream spanning several
// chunks additionally stores a root object: the ordered sequence of chunk
// keys, trailed by the root key itself. The root key is the digest of the
// whole stream, so identical content always converges on the same key and
// Put is idempotent.
//
// Chunking parameters (polynomial, min and max chunk size) are fixed per
// store and recorded in the store format descriptor, so that a verifier can
// reproduce boundaries when re-checking objects.
package cafs
