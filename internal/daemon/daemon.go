package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/logging"
	"github.com/launchpadtt/phabricator/internal/pull"
)

// ErrAlreadyRunning reports that another pulld process holds the
// instance lock.
var ErrAlreadyRunning = errors.New("another pulld instance is already running")

// Daemon owns the scheduler lifecycle and enforces single-instance
// execution through a lock file in the state directory.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *catalog.Store
	scheduler *pull.Scheduler

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	cancel   context.CancelFunc
	finished chan struct{}
	done     chan error
}

// Status represents daemon runtime information served over IPC.
type Status struct {
	Running      bool
	PID          int
	Scheduler    pull.Status
	Catalog      catalog.Summary
	CatalogError string
	DatabasePath string
	LockPath     string
	SocketPath   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, scheduler *pull.Scheduler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || scheduler == nil {
		return nil, errors.New("daemon requires config, store, and scheduler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		scheduler: scheduler,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the scheduling loop.
// The loop runs until ctx is canceled or a fatal scheduler error
// occurs; either way the result arrives on Done.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.finished = make(chan struct{})
	d.done = make(chan error, 1)

	go func() {
		err := d.scheduler.Run(runCtx)
		d.done <- err
		close(d.finished)
	}()

	d.running.Store(true)
	d.logger.Info("pulld daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Done delivers the scheduling loop's exit result exactly once. A nil
// value means the loop stopped because its context was canceled; any
// other value is a fatal scheduler error.
func (d *Daemon) Done() <-chan error {
	return d.done
}

// Stop cancels the scheduling loop, waits for it to exit, and releases
// the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.finished != nil {
		<-d.finished
		d.finished = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("pulld daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status merged with catalog counts.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Scheduler:    d.scheduler.Status(),
		DatabasePath: d.cfg.DatabasePath(),
		LockPath:     d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
	}
	summary, err := d.store.Summarize(ctx)
	if err != nil {
		status.CatalogError = err.Error()
	} else {
		status.Catalog = summary
	}
	return status
}
