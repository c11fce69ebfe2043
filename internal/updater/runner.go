package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
)

// Options select optional behaviour for a single update.
type Options struct {
	// NoDiscovery skips the ref discovery pass after the pull.
	NoDiscovery bool
}

// Result carries the diagnostic output of one update attempt.
type Result struct {
	Stdout string
	Stderr string
}

// Executor abstracts subprocess execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr string, err error)
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRunnerExecutor injects a custom executor (primarily for tests).
func WithRunnerExecutor(exec Executor) RunnerOption {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner launches the repository CLI as a subprocess to update one
// repository. The daemon uses it so update work runs outside the daemon
// process.
type Runner struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// NewRunner constructs a runner from the pull configuration. An empty
// updater binary resolves to the repository executable installed beside
// the current one, falling back to a PATH lookup.
func NewRunner(cfg *config.Config, opts ...RunnerOption) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner requires config")
	}
	runner := &Runner{
		binary:  resolveUpdaterBinary(cfg.Pull.UpdaterBinary),
		timeout: time.Duration(cfg.Pull.UpdateTimeout) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Binary reports the resolved updater executable.
func (r *Runner) Binary() string {
	return r.binary
}

// Update runs one synchronization attempt for the repository and returns
// whatever the subprocess printed. A non-nil error means the attempt
// failed; stderr output alongside a nil error is advisory.
func (r *Runner) Update(ctx context.Context, repo *catalog.Repository, opts Options) (Result, error) {
	if repo == nil {
		return Result{}, errors.New("repository required")
	}

	args := []string{"update"}
	if opts.NoDiscovery {
		args = append(args, "--no-discovery")
	}
	args = append(args, "--", repo.Name)

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	stdout, stderr, err := r.exec.Run(runCtx, r.binary, args)
	result := Result{Stdout: stdout, Stderr: stderr}
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return result, fmt.Errorf("%w: %s: update timed out after %s", ErrUpdateFailed, repo.Name, r.timeout)
		}
		return result, fmt.Errorf("%w: %s: %w", ErrUpdateFailed, repo.Name, err)
	}
	return result, nil
}

func resolveUpdaterBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "repository")
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	return "repository"
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("run command: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}
