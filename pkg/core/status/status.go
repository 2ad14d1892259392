// Package status declares the error values returned by the core package.
package status

import "github.com/darianrosebrook/agent-agency/pkg/errors"

var (
	// ErrNotFound indicates the requested ref, commit or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed indicates the store handle has been closed.
	ErrClosed = errors.New("store is closed")

	// ErrFormat indicates the store root carries an incompatible format descriptor.
	ErrFormat = errors.New("incompatible store format")

	// ErrCorruptTree indicates a tree references children that are missing
	// or fail verification, or does not decode canonically.
	ErrCorruptTree = errors.New("corrupt tree")

	// ErrCorruptCommit indicates a commit object does not decode
	ErrCorruptCommit = errors.New("corrupt commit")

	// ErrAmbiguousRef indicates a name resolves to neither a ref nor a digest.
	ErrAmbiguousRef = errors.New("name is neither a ref nor a digest")

	// ErrInterrupted indicates a maintenance operation observed a cancelled
	// context at a consistency checkpoint and stopped early.
	ErrInterrupted = errors.New("operation interrupted")

	// ErrRestore indicates a snapshot could not be materialized on the target.
	ErrRestore = errors.New("restore failed")

	// ErrIngest indicates a snapshot could not be recorded.
	ErrIngest = errors.New("ingest failed")
)
