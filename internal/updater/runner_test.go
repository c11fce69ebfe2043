package updater_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/launchpadtt/phabricator/internal/catalog"
	"github.com/launchpadtt/phabricator/internal/testsupport"
	"github.com/launchpadtt/phabricator/internal/updater"
)

type stubRunnerExecutor struct {
	binary      string
	args        []string
	hadDeadline bool
	stdout      string
	stderr      string
	err         error
}

func (s *stubRunnerExecutor) Run(ctx context.Context, binary string, args []string) (string, string, error) {
	s.binary = binary
	s.args = append([]string(nil), args...)
	_, s.hadDeadline = ctx.Deadline()
	return s.stdout, s.stderr, s.err
}

func TestRunnerBuildsUpdateCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithUpdaterBinary("/opt/phabricator/repository"))
	stub := &stubRunnerExecutor{}
	runner, err := updater.NewRunner(cfg, updater.WithRunnerExecutor(stub))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	repo := &catalog.Repository{Name: "alpha"}
	if _, err := runner.Update(context.Background(), repo, updater.Options{NoDiscovery: true}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if stub.binary != "/opt/phabricator/repository" {
		t.Fatalf("expected configured binary, got %q", stub.binary)
	}
	want := []string{"update", "--no-discovery", "--", "alpha"}
	if len(stub.args) != len(want) {
		t.Fatalf("argument mismatch: got %v, want %v", stub.args, want)
	}
	for i := range want {
		if stub.args[i] != want[i] {
			t.Fatalf("argument %d mismatch: got %v, want %v", i, stub.args, want)
		}
	}
}

func TestRunnerAppliesConfiguredTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pull.UpdateTimeout = 30
	stub := &stubRunnerExecutor{}
	runner, err := updater.NewRunner(cfg, updater.WithRunnerExecutor(stub))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	if _, err := runner.Update(context.Background(), &catalog.Repository{Name: "alpha"}, updater.Options{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !stub.hadDeadline {
		t.Fatal("expected update context to carry a deadline")
	}

	cfg.Pull.UpdateTimeout = 0
	runner, err = updater.NewRunner(cfg, updater.WithRunnerExecutor(stub))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Update(context.Background(), &catalog.Repository{Name: "alpha"}, updater.Options{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if stub.hadDeadline {
		t.Fatal("expected no deadline when timeout disabled")
	}
}

func TestRunnerReportsFailureWithDiagnostics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stub := &stubRunnerExecutor{
		stdout: "updating alpha",
		stderr: "fatal: could not resolve host",
		err:    errors.New("exit status 1"),
	}
	runner, err := updater.NewRunner(cfg, updater.WithRunnerExecutor(stub))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	result, err := runner.Update(context.Background(), &catalog.Repository{Name: "alpha"}, updater.Options{})
	if !errors.Is(err, updater.ErrUpdateFailed) {
		t.Fatalf("expected ErrUpdateFailed, got %v", err)
	}
	if result.Stdout != "updating alpha" {
		t.Fatalf("expected stdout to be captured, got %q", result.Stdout)
	}
	if result.Stderr != "fatal: could not resolve host" {
		t.Fatalf("expected stderr to be captured, got %q", result.Stderr)
	}
}

func TestRunnerCapturesSubprocessStreams(t *testing.T) {
	binDir := t.TempDir()
	script := filepath.Join(binDir, "repository")
	body := "#!/bin/sh\necho pulled 3 commits\necho remote warned us >&2\nexit 0\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub updater: %v", err)
	}

	cfg := testsupport.NewConfig(t, testsupport.WithUpdaterBinary(script))
	runner, err := updater.NewRunner(cfg)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	result, err := runner.Update(context.Background(), &catalog.Repository{Name: "alpha"}, updater.Options{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !strings.Contains(result.Stdout, "pulled 3 commits") {
		t.Fatalf("expected stdout capture, got %q", result.Stdout)
	}
	if !strings.Contains(result.Stderr, "remote warned us") {
		t.Fatalf("expected stderr capture, got %q", result.Stderr)
	}
}
