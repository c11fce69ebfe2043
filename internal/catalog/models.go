package catalog

import (
	"strings"
	"time"
)

// VCS identifies the version control system backing a repository.
type VCS string

const (
	VCSGit        VCS = "git"
	VCSMercurial  VCS = "hg"
	VCSSubversion VCS = "svn"
)

var allVCS = []VCS{VCSGit, VCSMercurial, VCSSubversion}

var vcsSet = func() map[VCS]struct{} {
	set := make(map[VCS]struct{}, len(allVCS))
	for _, vcs := range allVCS {
		set[vcs] = struct{}{}
	}
	return set
}()

// AllVCS returns the ordered list of supported version control systems.
func AllVCS() []VCS {
	cp := make([]VCS, len(allVCS))
	copy(cp, allVCS)
	return cp
}

// ParseVCS converts a string into a known VCS value.
func ParseVCS(value string) (VCS, bool) {
	normalized := VCS(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := vcsSet[normalized]
	return normalized, ok
}

// StatusType names a per-repository bookkeeping slot. Each repository holds
// at most one status row per type.
type StatusType string

const (
	// StatusNeedsUpdate marks a repository for update ahead of its
	// regular schedule. The daemon reads these rows as urgent signals;
	// the updater clears the row once an update attempt completes.
	StatusNeedsUpdate StatusType = "needs-update"
	// StatusFetch records the outcome of the most recent update attempt.
	StatusFetch StatusType = "fetch"
	// StatusInit records the outcome of the initial clone.
	StatusInit StatusType = "init"
)

// StatusCode qualifies a status row as success or failure.
type StatusCode string

const (
	CodeOkay  StatusCode = "okay"
	CodeError StatusCode = "error"
)

// StatusMessage is one bookkeeping row for a repository.
type StatusMessage struct {
	RepositoryID int64
	Type         StatusType
	Code         StatusCode
	Message      string
	Epoch        int64
}

// UpdateRequest is a pending needs-update signal.
type UpdateRequest struct {
	RepositoryID int64
	Epoch        int64
}

// RefCursor records the last observed commit identifier for one ref,
// forming the discovery watermark for a repository.
type RefCursor struct {
	RepositoryID int64
	Name         string
	Identifier   string
}

// Repository is a catalog entry describing one tracked working copy.
type Repository struct {
	ID          int64
	PHID        string
	Name        string
	DisplayName string
	VCS         VCS
	RemoteURI   string
	Tracked     bool
	// PullInterval is the per-repository minimum seconds between
	// updates. Zero means the global minimum applies.
	PullInterval int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Label returns the human-facing name for display output.
func (r *Repository) Label() string {
	if r == nil {
		return ""
	}
	if strings.TrimSpace(r.DisplayName) != "" {
		return r.DisplayName
	}
	return r.Name
}

// PullIntervalOrDefault returns the repository's configured interval, or
// fallback when no explicit interval is set.
func (r *Repository) PullIntervalOrDefault(fallback time.Duration) time.Duration {
	if r == nil || r.PullInterval <= 0 {
		return fallback
	}
	return time.Duration(r.PullInterval) * time.Second
}

// Summary aggregates catalog counts for diagnostic output.
type Summary struct {
	Total       int
	Tracked     int
	NeedsUpdate int
	ByVCS       map[VCS]int
}

// DatabaseHealth captures diagnostic information about the catalog database.
type DatabaseHealth struct {
	DBPath            string
	DatabaseExists    bool
	DatabaseReadable  bool
	TableExists       bool
	MissingColumns    []string
	IntegrityCheck    bool
	TotalRepositories int
	Error             string
}
