// Package status declares error constants returned by
// implementations of the Store interface.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/storage and one
// of its implementations.
package status

import "github.com/darianrosebrook/agent-agency/pkg/errors"

var (
	// Sentinel errors returned by implementations of the interface defined by storage

	// ErrNotFound indicates that the backend did not find the target object
	ErrNotFound = errors.New("not found")

	// ErrNotSupported indicates that the backend does not support this call
	ErrNotSupported = errors.New("not supported")

	// ErrExists indicates that the object already exists and cannot be overridden
	ErrExists = errors.New("exists already")

	// ErrObjectTooBig indicates that the object cannot be handled in memory
	ErrObjectTooBig = errors.New("object too big to be read into memory")

	// ErrInvalidResource indicates that the storage object has an invalid name
	ErrInvalidResource = errors.New("invalid storage resource name")

	// ErrStorageAPI indicates any other backend error
	ErrStorageAPI = errors.New("storage API error")
)
