// Package config loads, normalizes, and validates configuration for the
// repository daemon and CLI.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PHABRICATOR_UPDATER. The Config type centralizes every knob the daemon and
// CLI need, so working-copy locations, scheduling intervals, and state paths
// are resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
