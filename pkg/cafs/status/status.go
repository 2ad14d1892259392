// Package status declares error constants returned by the cafs package.
package status

import "github.com/darianrosebrook/agent-agency/pkg/errors"

var (
	// ErrNotFound indicates the requested key does not resolve to an object
	ErrNotFound = errors.New("object not found")

	// ErrCorrupted indicates stored bytes no longer hash to their claimed key
	ErrCorrupted = errors.New("object content does not match its key")

	// ErrNotRootListing indicates an object body is not a valid chunk key listing
	ErrNotRootListing = errors.New("object is not a root chunk listing")

	// ErrChunkParams indicates invalid chunking parameters
	ErrChunkParams = errors.New("invalid chunking parameters")
)
