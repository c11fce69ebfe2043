package preflight

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/launchpadtt/phabricator/internal/catalog"
)

// Requirement defines an external binary the pull machinery relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// ToolStatus reports the availability of a required binary.
type ToolStatus struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// VCSRequirements builds the binary requirements for the version control
// systems present in the catalog. Tools for systems with no repositories
// are marked optional so an unused hg or svn install never fails a check.
func VCSRequirements(byVCS map[catalog.VCS]int) []Requirement {
	tools := []struct {
		vcs     catalog.VCS
		name    string
		command string
	}{
		{catalog.VCSGit, "Git", "git"},
		{catalog.VCSMercurial, "Mercurial", "hg"},
		{catalog.VCSSubversion, "Subversion", "svn"},
	}
	requirements := make([]Requirement, 0, len(tools))
	for _, tool := range tools {
		count := byVCS[tool.vcs]
		requirements = append(requirements, Requirement{
			Name:        tool.name,
			Command:     tool.command,
			Description: fmt.Sprintf("Required for %s repositories", tool.vcs),
			Optional:    count == 0,
		})
	}
	return requirements
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []ToolStatus {
	results := make([]ToolStatus, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := ToolStatus{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
