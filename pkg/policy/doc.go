// Package policy screens content before it is admitted into the store.
//
// The gate runs ahead of chunking and hashing, so that no digest is ever
// computed over an unredacted secret. Hard-block rules abort the write
// entirely; redaction rules replace the matched span with a fixed marker,
// and only the redacted bytes proceed to storage.
package policy
