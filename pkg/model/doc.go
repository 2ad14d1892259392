// Package model describes the persisted data model of the recovery store:
// trees, commits, refs, journal entries, the store format descriptor and
// the on-disk path layout.
//
// Trees and commits have a canonical serialization: hashing the canonical
// bytes of an object yields its digest, and re-serializing a decoded object
// reproduces those bytes exactly.
package model
