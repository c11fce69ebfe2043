package pull

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/logging"
	"github.com/launchpadtt/phabricator/internal/updater"
)

// Run drives the scheduling loop until ctx is canceled. It returns nil on
// shutdown and an error only for fatal conditions: an explicitly named
// repository that does not exist, or a catalog that cannot be read.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Info("pull scheduler started",
		logging.Int("include", len(s.include)),
		logging.Int("exclude", len(s.exclude)),
		logging.Bool("no_discovery", s.noDiscovery),
		logging.Duration("minimum_interval", s.minimum))

	table := make(RetryTable)
	for {
		if ctx.Err() != nil {
			s.logger.Info("pull scheduler stopped")
			return nil
		}

		wake, err := s.Iterate(ctx, table)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			s.logger.Info("pull scheduler stopped")
			return nil
		}

		s.sleep(ctx, wake)
	}
}

// Iterate runs a single pass: resolve the working set, reconcile the
// table against pending update requests, execute every repository whose
// deadline has arrived, and compute when the loop should wake next. The
// caller owns the table between calls.
func (s *Scheduler) Iterate(ctx context.Context, table RetryTable) (time.Time, error) {
	repos, err := s.resolveWorkingSet(ctx)
	if err != nil {
		return time.Time{}, err
	}

	requests := s.pendingRequests(ctx)
	s.snapshotSignals(requests)

	table.Reconcile(s.now(), repos, requests)
	ordered := table.Order(repos, s.rng)

	s.executeDue(ctx, table, ordered)

	wake := s.computeWake(table, s.now())
	s.noteIteration(len(repos), countTracked(repos), wake)
	return wake, nil
}

// resolveWorkingSet produces this iteration's repositories from the
// include and exclude name lists. Exclusions are resolved the same way as
// inclusions so a misspelled exclusion fails loudly instead of silently
// excluding nothing.
func (s *Scheduler) resolveWorkingSet(ctx context.Context) ([]*catalog.Repository, error) {
	repos, err := s.directory.Resolve(ctx, s.include)
	if err != nil {
		return nil, fmt.Errorf("resolve repositories: %w", err)
	}
	if len(s.exclude) == 0 {
		return repos, nil
	}

	excluded, err := s.directory.Resolve(ctx, s.exclude)
	if err != nil {
		return nil, fmt.Errorf("resolve excluded repositories: %w", err)
	}
	drop := make(map[int64]struct{}, len(excluded))
	for _, repo := range excluded {
		drop[repo.ID] = struct{}{}
	}

	kept := make([]*catalog.Repository, 0, len(repos))
	for _, repo := range repos {
		if _, skip := drop[repo.ID]; !skip {
			kept = append(kept, repo)
		}
	}
	return kept, nil
}

// pendingRequests polls the urgent signals. Read failures are advisory:
// the signals are hints, and the next poll happens within one sleep
// increment.
func (s *Scheduler) pendingRequests(ctx context.Context) []catalog.UpdateRequest {
	requests, err := s.signals.PendingUpdateRequests(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "failed to read pending update requests", "signal_poll_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog database access"),
			logging.String(logging.FieldImpact, "urgent updates may be delayed one iteration"))
		return nil
	}
	return requests
}

func (s *Scheduler) executeDue(ctx context.Context, table RetryTable, ordered []*catalog.Repository) {
	for _, repo := range ordered {
		if ctx.Err() != nil {
			return
		}
		s.step(ctx, table, repo)
		s.heartbeat.Beat()
	}
}

// step attempts one repository. Failures never escape: they reschedule
// the repository after the global minimum and the loop moves on.
func (s *Scheduler) step(ctx context.Context, table RetryTable, repo *catalog.Repository) {
	if !repo.Tracked {
		return
	}
	if deadline, ok := table[repo.ID]; ok && deadline.After(s.now()) {
		return
	}

	result, err := s.syncer.Update(ctx, repo, updater.Options{NoDiscovery: s.noDiscovery})
	finished := s.now()
	s.noteOutcome(repo, err)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Prompt retry regardless of the repository's own interval.
		table[repo.ID] = finished.Add(s.minimum)
		logging.ErrorWithContext(s.logger, "repository update failed", "update_failed",
			logging.String(logging.FieldRepository, repo.Name),
			logging.String(logging.FieldVCS, string(repo.VCS)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the repository's fetch status for tool output"),
			logging.Duration("retry_in", s.minimum))
		return
	}

	table[repo.ID] = finished.Add(repo.PullIntervalOrDefault(s.minimum))
	if diag := strings.TrimSpace(result.Stderr); diag != "" {
		logging.WarnWithContext(s.logger, "update produced unexpected output", "update_diagnostics",
			logging.String(logging.FieldRepository, repo.Name),
			logging.String("output", diag),
			logging.String(logging.FieldImpact, "update still counted as success"))
	}
}

// computeWake returns max(earliest deadline, now + global minimum). The
// lower bound keeps an all-overdue table from turning the loop into a
// busy poll.
func (s *Scheduler) computeWake(table RetryTable, now time.Time) time.Time {
	wake := now.Add(s.minimum)
	if earliest := table.EarliestDeadline(); !earliest.IsZero() && earliest.After(wake) {
		wake = earliest
	}
	return wake
}

// sleep waits until wake in fixed increments, beating the heartbeat and
// re-polling the update requests on every increment. A request that was
// not part of the iteration's snapshot ends the sleep immediately, so
// urgent work waits at most one increment.
func (s *Scheduler) sleep(ctx context.Context, wake time.Time) {
	seen := s.seenSignals()
	for {
		remaining := wake.Sub(s.now())
		if remaining <= 0 {
			return
		}
		increment := s.tick
		if remaining < increment {
			increment = remaining
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(increment):
		}
		s.heartbeat.Beat()

		requests, err := s.signals.PendingUpdateRequests(ctx)
		if err != nil {
			continue
		}
		for _, req := range requests {
			if epoch, ok := seen[req.RepositoryID]; !ok || epoch != req.Epoch {
				s.logger.Info("waking early for update request",
					logging.Int64("repository_id", req.RepositoryID))
				return
			}
		}
	}
}

func countTracked(repos []*catalog.Repository) int {
	tracked := 0
	for _, repo := range repos {
		if repo.Tracked {
			tracked++
		}
	}
	return tracked
}
