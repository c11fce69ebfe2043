package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
	"github.com/launchpadtt/phabricator/internal/daemon"
	"github.com/launchpadtt/phabricator/internal/logging"
	"github.com/launchpadtt/phabricator/internal/pull"
	"github.com/launchpadtt/phabricator/internal/testsupport"
	"github.com/launchpadtt/phabricator/internal/updater"
)

type stubSyncer struct{}

func (stubSyncer) Update(context.Context, *catalog.Repository, updater.Options) (updater.Result, error) {
	return updater.Result{}, nil
}

func newTestDaemon(t *testing.T, cfg *config.Config, store *catalog.Store, opts ...pull.Option) *daemon.Daemon {
	t.Helper()
	opts = append(opts, pull.WithSleepIncrement(5*time.Millisecond))
	scheduler, err := pull.New(cfg, store, store, stubSyncer{}, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("pull.New: %v", err)
	}
	d, err := daemon.New(cfg, store, scheduler, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID <= 0 {
		t.Fatalf("expected a pid, got %d", status.PID)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := newTestDaemon(t, cfg, store)
	t.Cleanup(func() {
		first.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	secondStore := testsupport.MustOpenStore(t, cfg)
	second := newTestDaemon(t, cfg, secondStore)
	t.Cleanup(func() {
		second.Close()
	})

	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("expected second instance to start after first stopped: %v", err)
	}
	second.Stop()
}

func TestDaemonSurfacesFatalSchedulerError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store, pull.WithInclude("no-such-repository"))
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case err := <-d.Done():
		if !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("expected ErrNotFound from the loop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not exit on unresolvable include")
	}
}

func TestDaemonStatusAggregatesCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedRepository(t, store, "alpha")
	testsupport.SeedRepository(t, store, "beta")

	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() {
		d.Close()
	})

	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("expected daemon to report not running before start")
	}
	if status.Catalog.Total != 2 {
		t.Fatalf("expected 2 catalog entries, got %d", status.Catalog.Total)
	}
	if status.CatalogError != "" {
		t.Fatalf("unexpected catalog error: %s", status.CatalogError)
	}
	if status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected database path %s", status.DatabasePath)
	}
	if status.LockPath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %s", status.LockPath)
	}
	if status.SocketPath != cfg.SocketPath() {
		t.Fatalf("unexpected socket path %s", status.SocketPath)
	}
}
