// Package main hosts the repository CLI entrypoint and command graph.
//
// The Cobra-based command tree covers catalog administration (create,
// remove, track, list), on-demand synchronization (update, pull,
// discover), urgent update requests, and daemon status over the IPC
// socket. The update command doubles as the external updater pulld
// shells out to, so one binary serves both operators and the daemon.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
