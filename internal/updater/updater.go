package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/logging"
	"github.com/launchpadtt/phabricator/internal/vcs"
)

const statusMessageLimit = 500

// Updater performs the synchronization work behind the repository CLI.
type Updater struct {
	cfg     *config.Config
	store   *catalog.Store
	logger  *slog.Logger
	vcsOpts []vcs.Option
}

// New constructs an updater. vcsOpts are forwarded to every client, which
// lets tests substitute executors.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, vcsOpts ...vcs.Option) (*Updater, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("updater requires config and store")
	}
	return &Updater{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "updater"),
		vcsOpts: vcsOpts,
	}, nil
}

// Update synchronizes one repository end to end: refresh the working copy,
// run discovery unless disabled, record the fetch outcome, and consume any
// pending update request. The request is consumed even when the attempt
// fails; the failed attempt is already scheduled for a prompt retry, so the
// signal must not fire again.
func (u *Updater) Update(ctx context.Context, repo *catalog.Repository, opts Options) error {
	if repo == nil {
		return errors.New("repository required")
	}
	client, err := u.clientFor(repo)
	if err != nil {
		return err
	}

	unlock, err := u.lockRepository(repo)
	if err != nil {
		return err
	}
	defer unlock()

	started := time.Now()
	moved, attemptErr := u.synchronize(ctx, client, repo, opts)

	if err := u.store.ClearUpdateRequest(ctx, repo.ID); err != nil {
		logging.WarnWithContext(u.logger, "failed to clear update request", "catalog_write_failed",
			logging.String(logging.FieldRepository, repo.Name),
			logging.Error(err))
	}

	if attemptErr != nil {
		return attemptErr
	}
	u.logger.Info("repository updated",
		logging.String(logging.FieldRepository, repo.Name),
		logging.String(logging.FieldVCS, string(repo.VCS)),
		logging.Int("refs_moved", moved),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	return nil
}

// Pull refreshes the working copy without running discovery.
func (u *Updater) Pull(ctx context.Context, repo *catalog.Repository) error {
	if repo == nil {
		return errors.New("repository required")
	}
	client, err := u.clientFor(repo)
	if err != nil {
		return err
	}
	if !client.UsesWorkingCopy() {
		return fmt.Errorf("pull %s: %w", repo.Name, vcs.ErrNoWorkingCopy)
	}

	unlock, err := u.lockRepository(repo)
	if err != nil {
		return err
	}
	defer unlock()

	return u.refreshWorkingCopy(ctx, client, repo)
}

// Discover scans the current branch heads, advances the stored cursors,
// and reports how many refs moved.
func (u *Updater) Discover(ctx context.Context, repo *catalog.Repository) (int, error) {
	if repo == nil {
		return 0, errors.New("repository required")
	}
	client, err := u.clientFor(repo)
	if err != nil {
		return 0, err
	}
	return u.discover(ctx, client, repo)
}

func (u *Updater) synchronize(ctx context.Context, client vcs.Client, repo *catalog.Repository, opts Options) (int, error) {
	if client.UsesWorkingCopy() {
		if err := u.refreshWorkingCopy(ctx, client, repo); err != nil {
			u.recordFetchFailure(ctx, repo, err)
			return 0, err
		}
	}

	moved := 0
	if !opts.NoDiscovery {
		var err error
		if moved, err = u.discover(ctx, client, repo); err != nil {
			u.recordFetchFailure(ctx, repo, err)
			return 0, err
		}
	}

	if err := u.store.SetStatus(ctx, repo.ID, catalog.StatusFetch, catalog.CodeOkay, ""); err != nil {
		return moved, fmt.Errorf("record fetch status: %w", err)
	}
	return moved, nil
}

// refreshWorkingCopy clones a missing working copy or pulls an existing
// one. A fresh clone is already current, so no pull follows it.
func (u *Updater) refreshWorkingCopy(ctx context.Context, client vcs.Client, repo *catalog.Repository) error {
	dir := u.cfg.WorkingCopyPath(repo.Name)
	if !client.Detect(dir) {
		u.logger.Info("cloning new working copy",
			logging.String(logging.FieldRepository, repo.Name),
			logging.String(logging.FieldVCS, string(repo.VCS)),
			logging.String("path", dir))
		if err := client.Clone(ctx, repo.RemoteURI, dir); err != nil {
			err = fmt.Errorf("%w: clone %s: %w", ErrUpdateFailed, repo.Name, err)
			if recErr := u.store.SetStatus(ctx, repo.ID, catalog.StatusInit, catalog.CodeError, truncateMessage(err.Error())); recErr != nil {
				logging.WarnWithContext(u.logger, "failed to record init status", "catalog_write_failed",
					logging.String(logging.FieldRepository, repo.Name),
					logging.Error(recErr))
			}
			return err
		}
		if err := u.store.SetStatus(ctx, repo.ID, catalog.StatusInit, catalog.CodeOkay, ""); err != nil {
			return fmt.Errorf("record init status: %w", err)
		}
		return nil
	}

	if err := client.Pull(ctx, dir); err != nil {
		return fmt.Errorf("%w: pull %s: %w", ErrUpdateFailed, repo.Name, err)
	}
	return nil
}

func (u *Updater) discover(ctx context.Context, client vcs.Client, repo *catalog.Repository) (int, error) {
	dir := ""
	if client.UsesWorkingCopy() {
		dir = u.cfg.WorkingCopyPath(repo.Name)
	}
	heads, err := client.Heads(ctx, repo.RemoteURI, dir)
	if err != nil {
		return 0, fmt.Errorf("%w: discover %s: %w", ErrUpdateFailed, repo.Name, err)
	}

	previous, err := u.store.RefCursors(ctx, repo.ID)
	if err != nil {
		return 0, fmt.Errorf("load ref cursors: %w", err)
	}

	cursors := make(map[string]string, len(heads))
	moved := 0
	for _, head := range heads {
		cursors[head.Name] = head.Commit
		if previous[head.Name] != head.Commit {
			moved++
		}
	}

	if err := u.store.ReplaceRefCursors(ctx, repo.ID, cursors); err != nil {
		return 0, fmt.Errorf("store ref cursors: %w", err)
	}

	if moved > 0 {
		u.logger.Info("discovered ref movement",
			logging.String(logging.FieldRepository, repo.Name),
			logging.Int("refs_moved", moved),
			logging.Int("refs_total", len(heads)))
	}
	return moved, nil
}

func (u *Updater) recordFetchFailure(ctx context.Context, repo *catalog.Repository, cause error) {
	if err := u.store.SetStatus(ctx, repo.ID, catalog.StatusFetch, catalog.CodeError, truncateMessage(cause.Error())); err != nil {
		logging.WarnWithContext(u.logger, "failed to record fetch status", "catalog_write_failed",
			logging.String(logging.FieldRepository, repo.Name),
			logging.Error(err))
	}
}

// lockRepository serializes updates of one repository across processes.
func (u *Updater) lockRepository(repo *catalog.Repository) (func(), error) {
	lockPath := u.cfg.UpdateLockPath(repo.Name)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire update lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, repo.Name)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(u.logger, "failed to release update lock", "lock_release_failed",
				logging.String(logging.FieldRepository, repo.Name),
				logging.Error(err))
		}
	}, nil
}

func (u *Updater) clientFor(repo *catalog.Repository) (vcs.Client, error) {
	client, err := vcs.ForType(string(repo.VCS), u.vcsOpts...)
	if err != nil {
		return nil, fmt.Errorf("repository %s: %w", repo.Name, err)
	}
	return client, nil
}

func truncateMessage(message string) string {
	message = strings.TrimSpace(message)
	if len(message) <= statusMessageLimit {
		return message
	}
	runes := []rune(message)
	if len(runes) <= statusMessageLimit {
		return message
	}
	return string(runes[:statusMessageLimit]) + "..."
}
