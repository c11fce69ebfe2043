package ipc_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/launchpadtt/phabricator/internal/catalog"
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

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedRepository(t, store, "alpha")
	logger := logging.NewNop()

	scheduler, err := pull.New(cfg, store, store, noopSyncer{}, logger,
		pull.WithSleepIncrement(5*time.Millisecond))
	if err != nil {
		t.Fatalf("pull.New: %v", err)
	}
	d, err := daemon.New(cfg, store, scheduler, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	before, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if before.Running {
		t.Fatal("expected daemon to report not running before start")
	}
	if before.Catalog.Total != 1 || before.Catalog.Tracked != 1 {
		t.Fatalf("unexpected catalog counts: %+v", before.Catalog)
	}
	if before.Catalog.ByVCS["git"] != 1 {
		t.Fatalf("expected one git repository, got %+v", before.Catalog.ByVCS)
	}
	if before.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected database path: %s", before.DatabasePath)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}

	after, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !after.Running {
		t.Fatal("expected daemon to report running")
	}
	if after.PID <= 0 {
		t.Fatalf("expected a pid over the wire, got %d", after.PID)
	}

	d.Stop()

	final, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if final.Running {
		t.Fatal("expected daemon to report stopped")
	}
}
