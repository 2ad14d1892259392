package model

import "github.com/darianrosebrook/agent-agency/pkg/errors"

var (
	// ErrDuplicateEntry indicates a tree with two entries sharing a name
	ErrDuplicateEntry = errors.New("duplicate tree entry name")

	// ErrInvalidEntry indicates a malformed tree entry
	ErrInvalidEntry = errors.New("invalid tree entry")

	// ErrInvalidKind indicates a serialized object of the wrong kind
	ErrInvalidKind = errors.New("object kind mismatch")

	// ErrVersionMismatch indicates an object written under an incompatible
	// format version: refuse to interpret rather than guess
	ErrVersionMismatch = errors.New("unsupported object version")

	// ErrInvalidRefName indicates a ref name outside the accepted character set
	ErrInvalidRefName = errors.New("invalid ref name")
)
