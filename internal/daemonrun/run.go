package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/daemon"
	"github.com/launchpadtt/phabricator/internal/ipc"
	"github.com/launchpadtt/phabricator/internal/janitor"
	"github.com/launchpadtt/phabricator/internal/logging"
	"github.com/launchpadtt/phabricator/internal/preflight"
	"github.com/launchpadtt/phabricator/internal/pull"
	"github.com/launchpadtt/phabricator/internal/updater"
	"github.com/launchpadtt/phabricator/internal/watchdog"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	NoDiscovery bool
	Include     []string
	Exclude     []string
}

// Run starts the pulld daemon runtime loop. It returns once the process
// receives an interrupt or the scheduler exits; a non-nil result means
// the scheduler failed and the process should exit non-zero.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("pulld-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update pulld.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "pulld-*.log", Exclude: []string{logPath}},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return err
	}
	defer store.Close()

	logPreflightSnapshot(signalCtx, logger, cfg, store)

	dog := watchdog.New(logger)

	runner, err := updater.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("create updater: %w", err)
	}
	logger.Info("updater resolved", logging.String("binary", runner.Binary()))

	scheduler, err := pull.New(cfg, store, store, runner, logger,
		pull.WithInclude(opts.Include...),
		pull.WithExclude(opts.Exclude...),
		pull.WithNoDiscovery(opts.NoDiscovery),
		pull.WithHeartbeat(dog),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	d, err := daemon.New(cfg, store, scheduler, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	sweeper, err := janitor.New(cfg, store, logger, janitor.WithActiveLog(logPath))
	if err != nil {
		return fmt.Errorf("create janitor: %w", err)
	}
	if err := sweeper.Start(signalCtx); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	defer sweeper.Stop()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running pulld instance"),
			logging.String(logging.FieldImpact, "repository updates are not running"),
		)
		return err
	}

	dog.Ready()

	var runErr error
	select {
	case <-signalCtx.Done():
	case runErr = <-d.Done():
		if runErr != nil {
			logging.ErrorWithContext(logger, "scheduler exited", "scheduler_fatal",
				logging.Error(runErr),
				logging.String(logging.FieldErrorHint, "fix the repository list or database and restart"),
				logging.String(logging.FieldImpact, "repository updates stopped"),
			)
		}
	}

	dog.Stopping()
	logger.Info("pulld daemon shutting down")
	return runErr
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "pulld.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logPreflightSnapshot records directory and tool readiness once at
// startup. Failures are advisory; individual updates surface their own
// errors when a path or binary is actually unusable.
func logPreflightSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config, store *catalog.Store) {
	if logger == nil || cfg == nil {
		return
	}

	for _, result := range preflight.RunAll(cfg) {
		if result.Passed {
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_check_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "verify directory paths and permissions in the config"),
			logging.String(logging.FieldImpact, "repository updates may fail"),
		)
	}

	var summary catalog.Summary
	if store != nil {
		if s, err := store.Summarize(ctx); err == nil {
			summary = s
		}
	}
	attrs := []any{
		logging.String(logging.FieldEventType, "preflight_snapshot"),
		logging.Int("repositories", summary.Total),
		logging.Int("tracked", summary.Tracked),
	}
	for _, tool := range preflight.CheckBinaries(preflight.VCSRequirements(summary.ByVCS)) {
		attrs = append(attrs, logging.Bool(strings.ToLower(tool.Name)+"_available", tool.Available))
	}
	logger.Info("preflight snapshot", attrs...)
}
