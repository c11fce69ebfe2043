// Package main hosts the pulld daemon entrypoint.
//
// pulld runs the repository pull scheduler in the foreground: it loads
// configuration, opens the catalog, and keeps every tracked working copy
// fresh by shelling out to the repository CLI on a deadline schedule.
// Process supervision is external; under systemd the daemon reports
// readiness and feeds the service watchdog. All of the wiring lives in
// internal/daemonrun so this package stays a thin flag surface.
package main
