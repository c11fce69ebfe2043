package testsupport

import (
	"context"
	"testing"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedRepository registers a git repository for tests using the provided store.
func SeedRepository(t testing.TB, store *catalog.Store, name string) *catalog.Repository {
	t.Helper()

	repo, err := store.Create(context.Background(), catalog.CreateParams{
		Name:      name,
		VCS:       catalog.VCSGit,
		RemoteURI: "https://example.com/" + name + ".git",
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return repo
}
