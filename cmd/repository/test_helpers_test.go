package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/daemon"
	"github.com/launchpadtt/phabricator/internal/ipc"
	"github.com/launchpadtt/phabricator/internal/logging"
	"github.com/launchpadtt/phabricator/internal/pull"
	"github.com/launchpadtt/phabricator/internal/testsupport"
	"github.com/launchpadtt/phabricator/internal/updater"
)

type noopSyncer struct{}

func (noopSyncer) Update(context.Context, *catalog.Repository, updater.Options) (updater.Result, error) {
	return updater.Result{}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *catalog.Store
	configPath string
	socketPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		configPath: configPath,
		socketPath: cfg.SocketPath(),
	}
}

// startTestDaemon runs a daemon with a no-op syncer behind the env's
// socket so status commands have something to dial.
func startTestDaemon(t *testing.T, env *cliTestEnv) {
	t.Helper()

	logger := logging.NewNop()
	scheduler, err := pull.New(env.cfg, env.store, env.store, noopSyncer{}, logger,
		pull.WithSleepIncrement(5*time.Millisecond))
	if err != nil {
		t.Fatalf("pull.New: %v", err)
	}
	d, err := daemon.New(env.cfg, env.store, scheduler, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping daemon-backed test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nrepository_dir = %q\nstate_dir = %q\nlog_dir = %q\n\n[pull]\nminimum_interval = %d\n\n[logging]\nformat = %q\nlevel = %q\n",
		cfg.Paths.RepositoryDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Pull.MinimumInterval,
		cfg.Logging.Format,
		cfg.Logging.Level,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
