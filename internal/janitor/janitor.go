// Package janitor runs scheduled housekeeping inside the daemon:
// pruning aged repository status history and removing old log files.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/logging"
)

// maintenanceTimeout bounds one housekeeping pass.
const maintenanceTimeout = 5 * time.Minute

// Janitor schedules maintenance passes with a cron expression from the
// maintenance configuration section.
type Janitor struct {
	cfg    *config.Config
	store  *catalog.Store
	logger *slog.Logger
	parser cron.Parser
	now    func() time.Time

	// keepLogs lists log files the retention sweep must never remove,
	// typically the active run's log file and its pointer.
	keepLogs []string

	mu   sync.Mutex
	cron *cron.Cron
	ctx  context.Context
}

// Option adjusts janitor construction.
type Option func(*Janitor)

// WithActiveLog excludes a log file from retention sweeps.
func WithActiveLog(paths ...string) Option {
	return func(j *Janitor) {
		j.keepLogs = append(j.keepLogs, paths...)
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

// New constructs a janitor over the catalog store.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, opts ...Option) (*Janitor, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("janitor requires config and store")
	}
	j := &Janitor{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "janitor"),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start registers the maintenance schedule and begins firing it. Jobs
// inherit ctx, so canceling it stops in-flight passes.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}

	schedule := j.cfg.Maintenance.Schedule
	if _, err := j.parser.Parse(schedule); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", schedule, err)
	}

	j.ctx = ctx
	c := cron.New(cron.WithParser(j.parser))
	if _, err := c.AddFunc(schedule, j.runScheduled); err != nil {
		return fmt.Errorf("register maintenance job: %w", err)
	}
	c.Start()
	j.cron = c

	j.logger.Info("maintenance schedule registered",
		logging.String("schedule", schedule),
		logging.Int("status_retention_days", j.cfg.Maintenance.StatusRetentionDays),
		logging.Int("log_retention_days", j.cfg.Logging.RetentionDays))
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.cron = nil
	j.logger.Info("maintenance schedule stopped")
}

func (j *Janitor) runScheduled() {
	ctx, cancel := context.WithTimeout(j.ctx, maintenanceTimeout)
	defer cancel()
	if err := j.RunOnce(ctx); err != nil {
		logging.WarnWithContext(j.logger, "maintenance pass failed", "maintenance_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status history and old logs keep accumulating"),
			logging.String(logging.FieldErrorHint, "check catalog database access and log_dir permissions"))
	}
}

// RunOnce performs a single maintenance pass: prune status history older
// than the configured retention, then sweep old log files.
func (j *Janitor) RunOnce(ctx context.Context) error {
	if days := j.cfg.Maintenance.StatusRetentionDays; days > 0 {
		cutoff := j.now().AddDate(0, 0, -days)
		pruned, err := j.store.PruneStatusMessages(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune status history: %w", err)
		}
		if pruned > 0 {
			j.logger.Info("pruned repository status history",
				logging.Int64("removed", pruned),
				logging.Time("cutoff", cutoff))
		}
	}

	logging.CleanupOldLogs(j.logger, j.cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: j.cfg.Paths.LogDir, Pattern: "pulld-*.log", Exclude: j.keepLogs})
	return nil
}
