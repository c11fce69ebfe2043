// Package catalog persists the repository directory in SQLite and exposes
// the bookkeeping the pull daemon and updater coordinate through.
//
// The Store manages database connections, schema initialization, repository
// resolution by name, per-repository status rows (pending update requests,
// fetch and clone outcomes), and discovery ref watermarks. Status rows are
// keyed by (repository, type) so each repository carries at most one row per
// slot; re-requesting an update refreshes the row's epoch rather than
// queueing duplicates.
//
// Treat this package as the single source of truth for catalog semantics;
// when you add columns or status types, update schema.sql and bump
// schemaVersion.
package catalog
