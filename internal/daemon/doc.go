// Package daemon coordinates the long-running pulld process and system
// integration points.
//
// It wires configuration, the catalog store, and the pull scheduler into
// a single lifecycle with flock-based locking to prevent multiple
// instances. The daemon exposes the aggregated status snapshot served
// over IPC and surfaces fatal scheduler exits to the process runner.
//
// Keep orchestration logic here: scheduling decisions live in
// internal/pull while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
