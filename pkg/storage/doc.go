// Package storage provides the interface to handle backend storage objects.
//
// Objects are key/value pairs on something file system-like. The recovery
// store keeps blobs, journal segments and refs on such backends.
//
// This package supports the following backends:
//   - localfs: objects are stored on a local file system (production)
//   - localfs over an in-memory afero filesystem (tests)
package storage
