package updater_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/logging"
	"github.com/launchpadtt/phabricator/internal/testsupport"
	"github.com/launchpadtt/phabricator/internal/updater"
	"github.com/launchpadtt/phabricator/internal/vcs"
)

// scriptedExecutor records every vcs invocation and delegates behaviour to
// an optional handler keyed on the argument list.
type scriptedExecutor struct {
	calls   [][]string
	handler func(args []string, onLine func(string)) error
}

func (s *scriptedExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	s.calls = append(s.calls, append([]string{binary}, args...))
	if s.handler != nil {
		return s.handler(args, onLine)
	}
	return nil
}

func (s *scriptedExecutor) sawSubcommand(name string) bool {
	for _, call := range s.calls {
		for _, arg := range call {
			if arg == name {
				return true
			}
		}
	}
	return false
}

func TestUpdateClonesAndDiscovers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	repo := testsupport.SeedRepository(t, store, "alpha")
	ctx := context.Background()

	if _, err := store.RequestUpdate(ctx, repo.ID); err != nil {
		t.Fatalf("request update: %v", err)
	}

	stub := &scriptedExecutor{
		handler: func(args []string, onLine func(string)) error {
			switch args[0] {
			case "clone":
				target := args[len(args)-1]
				return os.MkdirAll(filepath.Join(target, ".git"), 0o755)
			case "-C":
				onLine("main\t4b825dc642cb6eb9a060e54bf8d69288fbee4904")
				return nil
			}
			return nil
		},
	}
	up, err := updater.New(cfg, store, logging.NewNop(), vcs.WithExecutor(stub))
	if err != nil {
		t.Fatalf("new updater: %v", err)
	}

	if err := up.Update(ctx, repo, updater.Options{}); err != nil {
		t.Fatalf("update: %v", err)
	}

	initStatus, err := store.StatusFor(ctx, repo.ID, catalog.StatusInit)
	if err != nil {
		t.Fatalf("init status: %v", err)
	}
	if initStatus == nil || initStatus.Code != catalog.CodeOkay {
		t.Fatalf("expected okay init status, got %#v", initStatus)
	}

	fetchStatus, err := store.StatusFor(ctx, repo.ID, catalog.StatusFetch)
	if err != nil {
		t.Fatalf("fetch status: %v", err)
	}
	if fetchStatus == nil || fetchStatus.Code != catalog.CodeOkay {
		t.Fatalf("expected okay fetch status, got %#v", fetchStatus)
	}

	cursors, err := store.RefCursors(ctx, repo.ID)
	if err != nil {
		t.Fatalf("ref cursors: %v", err)
	}
	if cursors["main"] != "4b825dc642cb6eb9a060e54bf8d69288fbee4904" {
		t.Fatalf("expected main cursor to be stored, got %#v", cursors)
	}

	pending, err := store.PendingUpdateRequests(ctx)
	if err != nil {
		t.Fatalf("pending requests: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected update request to be consumed, got %#v", pending)
	}
}

func TestUpdateRecordsFetchFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	repo := testsupport.SeedRepository(t, store, "beta")
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Join(cfg.WorkingCopyPath(repo.Name), ".git"), 0o755); err != nil {
		t.Fatalf("prepare working copy: %v", err)
	}
	if _, err := store.RequestUpdate(ctx, repo.ID); err != nil {
		t.Fatalf("request update: %v", err)
	}

	stub := &scriptedExecutor{
		handler: func(args []string, onLine func(string)) error {
			if args[0] == "-C" && args[2] == "fetch" {
				onLine("fatal: unable to access remote")
				return errors.New("exit status 128")
			}
			return nil
		},
	}
	up, err := updater.New(cfg, store, logging.NewNop(), vcs.WithExecutor(stub))
	if err != nil {
		t.Fatalf("new updater: %v", err)
	}

	err = up.Update(ctx, repo, updater.Options{})
	if !errors.Is(err, updater.ErrUpdateFailed) {
		t.Fatalf("expected ErrUpdateFailed, got %v", err)
	}

	fetchStatus, err := store.StatusFor(ctx, repo.ID, catalog.StatusFetch)
	if err != nil {
		t.Fatalf("fetch status: %v", err)
	}
	if fetchStatus == nil || fetchStatus.Code != catalog.CodeError {
		t.Fatalf("expected error fetch status, got %#v", fetchStatus)
	}
	if !strings.Contains(fetchStatus.Message, "unable to access remote") {
		t.Fatalf("expected tool output in status message, got %q", fetchStatus.Message)
	}

	// A failed attempt still consumes the urgent signal; the scheduler
	// retries on its own backoff.
	pending, err := store.PendingUpdateRequests(ctx)
	if err != nil {
		t.Fatalf("pending requests: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected update request to be consumed after failure, got %#v", pending)
	}
}

func TestUpdateNoDiscoverySkipsRefScan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	repo := testsupport.SeedRepository(t, store, "gamma")
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Join(cfg.WorkingCopyPath(repo.Name), ".git"), 0o755); err != nil {
		t.Fatalf("prepare working copy: %v", err)
	}

	stub := &scriptedExecutor{}
	up, err := updater.New(cfg, store, logging.NewNop(), vcs.WithExecutor(stub))
	if err != nil {
		t.Fatalf("new updater: %v", err)
	}

	if err := up.Update(ctx, repo, updater.Options{NoDiscovery: true}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if stub.sawSubcommand("for-each-ref") {
		t.Fatalf("expected discovery to be skipped, calls %v", stub.calls)
	}

	fetchStatus, err := store.StatusFor(ctx, repo.ID, catalog.StatusFetch)
	if err != nil {
		t.Fatalf("fetch status: %v", err)
	}
	if fetchStatus == nil || fetchStatus.Code != catalog.CodeOkay {
		t.Fatalf("expected okay fetch status, got %#v", fetchStatus)
	}
}

func TestUpdateRejectsLockedRepository(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	repo := testsupport.SeedRepository(t, store, "delta")
	ctx := context.Background()

	lockPath := cfg.UpdateLockPath(repo.Name)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		t.Fatalf("create lock dir: %v", err)
	}
	held := flock.New(lockPath)
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("acquire competing lock: locked=%v err=%v", locked, err)
	}
	defer func() {
		_ = held.Unlock()
	}()

	up, err := updater.New(cfg, store, logging.NewNop(), vcs.WithExecutor(&scriptedExecutor{}))
	if err != nil {
		t.Fatalf("new updater: %v", err)
	}

	if err := up.Update(ctx, repo, updater.Options{}); !errors.Is(err, updater.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestPullRejectsRemoteOnlyRepositories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	repo, err := store.Create(ctx, catalog.CreateParams{
		Name:      "vendor-svn",
		VCS:       catalog.VCSSubversion,
		RemoteURI: "https://svn.example.com/vendor",
	})
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}

	up, err := updater.New(cfg, store, logging.NewNop(), vcs.WithExecutor(&scriptedExecutor{}))
	if err != nil {
		t.Fatalf("new updater: %v", err)
	}

	if err := up.Pull(ctx, repo); !errors.Is(err, vcs.ErrNoWorkingCopy) {
		t.Fatalf("expected ErrNoWorkingCopy, got %v", err)
	}
}

func TestUpdateRemoteOnlyRepositoryDiscoversRevision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	repo, err := store.Create(ctx, catalog.CreateParams{
		Name:      "vendor-svn",
		VCS:       catalog.VCSSubversion,
		RemoteURI: "https://svn.example.com/vendor",
	})
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}

	stub := &scriptedExecutor{
		handler: func(args []string, onLine func(string)) error {
			if args[0] == "info" {
				onLine("1842")
			}
			return nil
		},
	}
	up, err := updater.New(cfg, store, logging.NewNop(), vcs.WithExecutor(stub))
	if err != nil {
		t.Fatalf("new updater: %v", err)
	}

	if err := up.Update(ctx, repo, updater.Options{}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if stub.sawSubcommand("clone") || stub.sawSubcommand("fetch") {
		t.Fatalf("expected no working copy commands, calls %v", stub.calls)
	}

	cursors, err := store.RefCursors(ctx, repo.ID)
	if err != nil {
		t.Fatalf("ref cursors: %v", err)
	}
	if cursors["revision"] != "1842" {
		t.Fatalf("expected revision cursor, got %#v", cursors)
	}
}

func TestDiscoverCountsMovedRefs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	repo := testsupport.SeedRepository(t, store, "epsilon")
	ctx := context.Background()

	if err := store.ReplaceRefCursors(ctx, repo.ID, map[string]string{"main": "old"}); err != nil {
		t.Fatalf("seed cursors: %v", err)
	}

	stub := &scriptedExecutor{
		handler: func(args []string, onLine func(string)) error {
			onLine("main\tnew")
			onLine("dev\tfresh")
			return nil
		},
	}
	up, err := updater.New(cfg, store, logging.NewNop(), vcs.WithExecutor(stub))
	if err != nil {
		t.Fatalf("new updater: %v", err)
	}

	moved, err := up.Discover(ctx, repo)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected 2 moved refs, got %d", moved)
	}

	moved, err = up.Discover(ctx, repo)
	if err != nil {
		t.Fatalf("second discover: %v", err)
	}
	if moved != 0 {
		t.Fatalf("expected no movement on identical heads, got %d", moved)
	}
}
