// Package core implements the versioned snapshot store: it wires the
// content-addressable object layer, the write-ahead journal, the ref table,
// the location index and the admission gate into a single crash-safe handle.
//
// A Store is opened on a root directory, replays any unapplied journal
// entries, and then serves ingest, restore, diff, gc and fsck operations.
// Ingest and read operations may run concurrently; maintenance (gc, reindex)
// runs exclusively.
package core
