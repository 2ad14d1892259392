// Package agentagency provides a crash-safe, content-addressable snapshot
// store for recording, restoring and comparing filesystem states produced
// during automated task execution.
//
// The library entry point is pkg/core; the recvault command wraps it for
// operators.
package agentagency
