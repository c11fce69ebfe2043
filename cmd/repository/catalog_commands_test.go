package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/testsupport"
)

func TestCreateAndListRepositories(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"create", "alpha", "--vcs", "git", "--uri", "https://example.com/alpha.git"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("create alpha: %v", err)
	}
	requireContains(t, stdout, "Created alpha (Git, tracked: yes)")

	stdout, _, err = runCLI(t, []string{"create", "beta", "--vcs", "hg", "--uri", "https://example.com/beta", "--untracked", "--interval", "120"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("create beta: %v", err)
	}
	requireContains(t, stdout, "Created beta (Mercurial, tracked: no)")

	stdout, _, err = runCLI(t, []string{"list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, stdout, "alpha")
	requireContains(t, stdout, "beta")
	requireContains(t, stdout, "Mercurial")
	requireContains(t, stdout, "120s")
	requireContains(t, stdout, "never")

	stdout, _, err = runCLI(t, []string{"list", "--tracked"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list --tracked: %v", err)
	}
	requireContains(t, stdout, "alpha")
	if strings.Contains(stdout, "beta") {
		t.Fatalf("expected tracked listing to omit beta, got %q", stdout)
	}
}

func TestListEmptyCatalog(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, stdout, "Catalog is empty")
}

func TestCreateRejectsUnknownVCS(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"create", "alpha", "--vcs", "cvs", "--uri", "https://example.com/alpha"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected create with unknown vcs to fail")
	}
	requireContains(t, err.Error(), "unsupported vcs")
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	env := setupCLITestEnv(t)

	args := []string{"create", "alpha", "--vcs", "git", "--uri", "https://example.com/alpha.git"}
	if _, _, err := runCLI(t, args, env.socketPath, env.configPath); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, _, err := runCLI(t, args, env.socketPath, env.configPath)
	if !errors.Is(err, catalog.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestTrackAndUntrack(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedRepository(t, env.store, "alpha")

	stdout, _, err := runCLI(t, []string{"untrack", "alpha"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("untrack: %v", err)
	}
	requireContains(t, stdout, "No longer tracking alpha")

	repo, err := env.store.GetByName(context.Background(), "alpha")
	if err != nil || repo == nil {
		t.Fatalf("GetByName: %v", err)
	}
	if repo.Tracked {
		t.Fatal("expected repository to be untracked")
	}

	stdout, _, err = runCLI(t, []string{"track", "alpha"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	requireContains(t, stdout, "Tracking alpha")

	repo, err = env.store.GetByName(context.Background(), "alpha")
	if err != nil || repo == nil {
		t.Fatalf("GetByName: %v", err)
	}
	if !repo.Tracked {
		t.Fatal("expected repository to be tracked again")
	}
}

func TestRemoveRepository(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedRepository(t, env.store, "alpha")

	stdout, _, err := runCLI(t, []string{"remove", "alpha"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, stdout, "Removed alpha")

	_, _, err = runCLI(t, []string{"remove", "alpha"}, env.socketPath, env.configPath)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRequestUpdateRecordsSignal(t *testing.T) {
	env := setupCLITestEnv(t)
	repo := testsupport.SeedRepository(t, env.store, "alpha")

	stdout, _, err := runCLI(t, []string{"request-update", "alpha"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("request-update: %v", err)
	}
	requireContains(t, stdout, "Requested urgent update for alpha")

	pending, err := env.store.PendingUpdateRequests(context.Background())
	if err != nil {
		t.Fatalf("PendingUpdateRequests: %v", err)
	}
	if len(pending) != 1 || pending[0].RepositoryID != repo.ID {
		t.Fatalf("expected one pending request for %d, got %+v", repo.ID, pending)
	}
}

func TestRequestUpdateWarnsWhenUntracked(t *testing.T) {
	env := setupCLITestEnv(t)
	repo := testsupport.SeedRepository(t, env.store, "alpha")
	if err := env.store.SetTracked(context.Background(), repo.ID, false); err != nil {
		t.Fatalf("SetTracked: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"request-update", "alpha"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("request-update: %v", err)
	}
	requireContains(t, stdout, "Requested urgent update for alpha")
	requireContains(t, stdout, "untracked")
}
