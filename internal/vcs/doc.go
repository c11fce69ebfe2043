// Package vcs wraps the version control binaries used to maintain local
// working copies of observed repositories.
//
// It exposes a Client interface with per-tool implementations for Git,
// Mercurial, and Subversion, selected through ForType. Git and Mercurial
// clients clone and refresh on-disk working copies; the Subversion client
// maintains no working copy and only reads the remote head revision for
// discovery. All commands run through an injectable Executor so tests can
// record invocations and feed canned output without the real binaries.
package vcs
