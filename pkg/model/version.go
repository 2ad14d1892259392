package model

const (
	// CurrentTreeVersion indicates the version of the tree model
	//
	// Note that version numbering is an integer, not a semver string.
	CurrentTreeVersion uint64 = 1

	// CurrentCommitVersion indicates the version of the commit model
	CurrentCommitVersion uint64 = 1

	// CurrentStoreVersion indicates the version of the store layout,
	// recorded in the FORMAT descriptor at the store root
	CurrentStoreVersion uint64 = 1

	// CurrentJournalVersion indicates the version of the journal entry model
	CurrentJournalVersion uint64 = 1
)
