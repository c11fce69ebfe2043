// Package updater performs and dispatches repository synchronization.
//
// It has two halves. Updater holds the real update logic used by the
// repository CLI: it serializes work per repository with a file lock,
// clones missing working copies, pulls through internal/vcs, scans branch
// heads against the stored discovery cursors, and records init and fetch
// status rows in the catalog. Runner is the daemon-side dispatcher: it
// shells out to the repository CLI for each scheduled update so a crash or
// hang in update work can never take the scheduler down with it, capturing
// stdout and stderr for diagnostics and applying the configured timeout.
package updater
