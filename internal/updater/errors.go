package updater

import "errors"

var (
	// ErrLocked reports that another process already holds the
	// repository's update lock.
	ErrLocked = errors.New("repository update already in progress")
	// ErrUpdateFailed marks failures of the synchronization work itself,
	// as opposed to lookup, locking, or bookkeeping problems.
	ErrUpdateFailed = errors.New("repository update failed")
)
