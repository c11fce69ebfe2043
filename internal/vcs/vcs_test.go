package vcs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/launchpadtt/phabricator/internal/vcs"
)

type stubExecutor struct {
	binary string
	args   []string
	lines  []string
	err    error
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	s.binary = binary
	s.args = append([]string(nil), args...)
	for _, line := range s.lines {
		if onLine != nil {
			onLine(line)
		}
	}
	return s.err
}

func TestForTypeSelectsClient(t *testing.T) {
	cases := map[string]string{
		"git": "git",
		"hg":  "hg",
		"svn": "svn",
		"Git": "git",
	}
	for input, want := range cases {
		client, err := vcs.ForType(input)
		if err != nil {
			t.Fatalf("ForType(%q) returned error: %v", input, err)
		}
		if client.Name() != want {
			t.Fatalf("ForType(%q) selected %q, want %q", input, client.Name(), want)
		}
	}

	if _, err := vcs.ForType("cvs"); !errors.Is(err, vcs.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType for cvs, got %v", err)
	}
}

func TestGitCloneArguments(t *testing.T) {
	stub := &stubExecutor{}
	client := vcs.NewGit(vcs.WithExecutor(stub))
	dir := filepath.Join(t.TempDir(), "mirrors", "alpha")

	if err := client.Clone(context.Background(), "https://example.com/alpha.git", dir); err != nil {
		t.Fatalf("Clone returned error: %v", err)
	}

	if stub.binary != "git" {
		t.Fatalf("expected git binary, got %q", stub.binary)
	}
	want := []string{"clone", "--origin", "origin", "--", "https://example.com/alpha.git", dir}
	assertArgs(t, stub.args, want)

	if _, err := os.Stat(filepath.Dir(dir)); err != nil {
		t.Fatalf("expected clone parent directory to exist: %v", err)
	}
}

func TestGitCloneRequiresRemote(t *testing.T) {
	client := vcs.NewGit(vcs.WithExecutor(&stubExecutor{}))
	if err := client.Clone(context.Background(), "  ", t.TempDir()); err == nil {
		t.Fatal("expected error for blank remote uri")
	}
}

func TestGitPullRequiresWorkingCopy(t *testing.T) {
	client := vcs.NewGit(vcs.WithExecutor(&stubExecutor{}))
	err := client.Pull(context.Background(), t.TempDir())
	if !errors.Is(err, vcs.ErrMissingWorkingCopy) {
		t.Fatalf("expected ErrMissingWorkingCopy, got %v", err)
	}
}

func TestGitPullArguments(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("create marker: %v", err)
	}

	stub := &stubExecutor{}
	client := vcs.NewGit(vcs.WithExecutor(stub), vcs.WithBinary("/usr/local/bin/git"))
	if err := client.Pull(context.Background(), dir); err != nil {
		t.Fatalf("Pull returned error: %v", err)
	}

	if stub.binary != "/usr/local/bin/git" {
		t.Fatalf("expected binary override, got %q", stub.binary)
	}
	assertArgs(t, stub.args, []string{"-C", dir, "fetch", "--prune", "origin"})
}

func TestGitPullErrorIncludesOutputTail(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("create marker: %v", err)
	}

	stub := &stubExecutor{
		lines: []string{"fatal: repository 'https://example.com/alpha.git' not found"},
		err:   errors.New("exit status 128"),
	}
	client := vcs.NewGit(vcs.WithExecutor(stub))
	err := client.Pull(context.Background(), dir)
	if err == nil {
		t.Fatal("expected pull failure")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestGitHeadsParsesBranches(t *testing.T) {
	dir := t.TempDir()
	stub := &stubExecutor{
		lines: []string{
			"main\t4b825dc642cb6eb9a060e54bf8d69288fbee4904",
			"HEAD\t4b825dc642cb6eb9a060e54bf8d69288fbee4904",
			"release/1.0\taaaa1111bbbb2222cccc3333dddd4444eeee5555",
			"warning: some stderr noise without tabs",
		},
	}
	client := vcs.NewGit(vcs.WithExecutor(stub))

	refs, err := client.Heads(context.Background(), "", dir)
	if err != nil {
		t.Fatalf("Heads returned error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d: %#v", len(refs), refs)
	}
	if refs[0].Name != "main" || refs[1].Name != "release/1.0" {
		t.Fatalf("unexpected ref order: %#v", refs)
	}
	if refs[0].Commit != "4b825dc642cb6eb9a060e54bf8d69288fbee4904" {
		t.Fatalf("unexpected commit for main: %q", refs[0].Commit)
	}

	if len(stub.args) == 0 || stub.args[len(stub.args)-1] != "refs/remotes/origin" {
		t.Fatalf("expected for-each-ref scoped to origin, got %v", stub.args)
	}
}

func TestMercurialCloneArguments(t *testing.T) {
	stub := &stubExecutor{}
	client := vcs.NewMercurial(vcs.WithExecutor(stub))
	dir := filepath.Join(t.TempDir(), "beta")

	if err := client.Clone(context.Background(), "https://hg.example.com/beta", dir); err != nil {
		t.Fatalf("Clone returned error: %v", err)
	}
	assertArgs(t, stub.args, []string{"clone", "--noupdate", "--", "https://hg.example.com/beta", dir})
}

func TestMercurialPullArguments(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".hg"), 0o755); err != nil {
		t.Fatalf("create marker: %v", err)
	}

	stub := &stubExecutor{}
	client := vcs.NewMercurial(vcs.WithExecutor(stub))
	if err := client.Pull(context.Background(), dir); err != nil {
		t.Fatalf("Pull returned error: %v", err)
	}
	assertArgs(t, stub.args, []string{"-R", dir, "pull"})
}

func TestMercurialHeadsParsesBranches(t *testing.T) {
	stub := &stubExecutor{
		lines: []string{
			"default\tf00dcafef00dcafef00dcafef00dcafef00dcafe",
			"stable\tdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		},
	}
	client := vcs.NewMercurial(vcs.WithExecutor(stub))

	refs, err := client.Heads(context.Background(), "", t.TempDir())
	if err != nil {
		t.Fatalf("Heads returned error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Name != "default" || refs[1].Name != "stable" {
		t.Fatalf("unexpected refs: %#v", refs)
	}

	foundTemplate := false
	for _, arg := range stub.args {
		if arg == "{branch}\t{node}\n" {
			foundTemplate = true
		}
	}
	if !foundTemplate {
		t.Fatalf("expected branches template in args, got %v", stub.args)
	}
}

func TestSubversionHasNoWorkingCopy(t *testing.T) {
	client := vcs.NewSubversion(vcs.WithExecutor(&stubExecutor{}))
	if client.UsesWorkingCopy() {
		t.Fatal("expected svn to report no working copy")
	}
	if client.Detect(t.TempDir()) {
		t.Fatal("expected svn Detect to report false")
	}
	if err := client.Clone(context.Background(), "https://svn.example.com/repo", "/tmp/x"); !errors.Is(err, vcs.ErrNoWorkingCopy) {
		t.Fatalf("expected ErrNoWorkingCopy from Clone, got %v", err)
	}
	if err := client.Pull(context.Background(), "/tmp/x"); !errors.Is(err, vcs.ErrNoWorkingCopy) {
		t.Fatalf("expected ErrNoWorkingCopy from Pull, got %v", err)
	}
}

func TestSubversionHeadsReadsRevision(t *testing.T) {
	stub := &stubExecutor{
		lines: []string{
			"svn: warning: cannot set LC_CTYPE locale",
			"1842",
		},
	}
	client := vcs.NewSubversion(vcs.WithExecutor(stub))

	refs, err := client.Heads(context.Background(), "https://svn.example.com/repo", "")
	if err != nil {
		t.Fatalf("Heads returned error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected a single revision ref, got %#v", refs)
	}
	if refs[0].Name != "revision" || refs[0].Commit != "1842" {
		t.Fatalf("unexpected revision ref: %#v", refs[0])
	}

	want := []string{"info", "--non-interactive", "--show-item", "revision", "--", "https://svn.example.com/repo"}
	assertArgs(t, stub.args, want)
}

func TestSubversionHeadsRequiresRevision(t *testing.T) {
	stub := &stubExecutor{lines: []string{"no numbers here"}}
	client := vcs.NewSubversion(vcs.WithExecutor(stub))
	if _, err := client.Heads(context.Background(), "https://svn.example.com/repo", ""); err == nil {
		t.Fatal("expected error when svn info reports no revision")
	}
}

func assertArgs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("argument count mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("argument %d mismatch: got %q, want %q (args %v)", i, got[i], want[i], got)
		}
	}
}
