// Package logging assembles the structured slog loggers used by the pull
// daemon and the repository CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and exposes context-aware helpers so update code can
// automatically tag log lines with repository names and correlation IDs.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape and routing guarantees.
package logging
