package model

import (
	"regexp"
	"strings"
)

// Persisted layout under a store root:
//
//	FORMAT                      store format descriptor
//	blobs/{hh}/{digest}         loose objects, prefixed by 2 hex digits
//	packs/{pack-id}.pack        repacked objects
//	journal/{token}.log         journal segments, token-ordered
//	journal/CHECKPOINT          token of the last applied checkpoint
//	refs/{name}                 one file per ref
//	index/                      disposable badger location cache
const (
	// FormatPath locates the store format descriptor
	FormatPath = "FORMAT"

	// BlobPrefix is the loose object area
	BlobPrefix = "blobs/"

	// PackPrefix is the pack file area
	PackPrefix = "packs/"

	// JournalPrefix is the journal segment area
	JournalPrefix = "journal/"

	// CheckpointPath locates the last applied checkpoint token
	CheckpointPath = JournalPrefix + "CHECKPOINT"

	// RefPrefix is the ref table area
	RefPrefix = "refs/"

	// IndexDir is the disposable location cache, relative to the store root
	IndexDir = "index"
)

var refNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)

// ValidateRefName accepts ref names safe to use as file names under refs/
func ValidateRefName(name string) error {
	if name == "" || len(name) > 255 || !refNameRe.MatchString(name) {
		return ErrInvalidRefName.WrapMessage(name)
	}
	if strings.Contains(name, "..") || strings.HasSuffix(name, "/") {
		return ErrInvalidRefName.WrapMessage(name)
	}
	return nil
}

// RefPath locates a ref file
func RefPath(name string) string {
	return RefPrefix + name
}

// RefNameFromPath is the inverse of RefPath
func RefNameFromPath(pth string) string {
	return strings.TrimPrefix(pth, RefPrefix)
}

// JournalSegmentPath locates one journal segment
func JournalSegmentPath(token string) string {
	return JournalPrefix + token + ".log"
}

// TokenFromSegmentPath is the inverse of JournalSegmentPath
func TokenFromSegmentPath(pth string) string {
	return strings.TrimSuffix(strings.TrimPrefix(pth, JournalPrefix), ".log")
}

// PackPath locates one pack file
func PackPath(id string) string {
	return PackPrefix + id + ".pack"
}
