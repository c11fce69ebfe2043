package preflight

import (
	"github.com/launchpadtt/phabricator/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config: access to
// every configured directory plus free space where working copies live.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Repository directory", cfg.Paths.RepositoryDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDiskSpace("Repository disk space", cfg.Paths.RepositoryDir))
	return results
}
