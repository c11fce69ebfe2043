package catalog

import "errors"

var (
	// ErrNotFound reports that an explicitly named repository does not
	// exist in the catalog. Callers resolving operator-supplied names
	// treat this as fatal rather than skipping the name silently.
	ErrNotFound = errors.New("repository not found")
	// ErrDuplicate reports a conflicting repository name or PHID.
	ErrDuplicate = errors.New("repository already exists")
)
