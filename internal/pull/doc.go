// Package pull contains the repository pull scheduler: the loop that
// decides, continuously, which repository should next be synchronized.
//
// Each iteration resolves the working set from the catalog, folds pending
// update requests into the retry table, orders repositories soonest
// deadline first, updates every repository whose deadline has arrived, and
// then sleeps until the next deadline. Successful updates reschedule a
// repository after its own pull interval; failed updates retry after the
// global minimum so a long interval never delays recovery. Sleeping
// happens in short increments that re-poll the update requests, so an
// urgent request shortens the wait to at most one increment.
//
// The retry table lives entirely inside Run. A restart forgets all
// backoff state, which simply makes every repository immediately eligible
// again. Collaborators (catalog reads, the update subprocess, the liveness
// heartbeat) enter through narrow interfaces so tests can drive the loop
// with synthetic sets, signals, and clocks.
package pull
