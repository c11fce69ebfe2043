// Package preflight provides readiness checks for the filesystem paths
// and version control binaries the repository tools depend on.
//
// These checks run in two contexts:
//   - The daemon runs them once at startup and logs a snapshot, so a
//     misconfigured host is visible before the first update fails.
//   - The CLI "repository status" command renders the same checks for
//     operators.
//
// Checks never fail hard here; callers decide what a failed result means.
package preflight
