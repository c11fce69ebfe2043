package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Git maintains local working copies with the git binary. Pulls fetch into
// remote-tracking refs; nothing ever checks out a work tree.
type Git struct {
	tool
}

// NewGit constructs a git client using defaults.
func NewGit(opts ...Option) *Git {
	return &Git{tool: newTool("git", opts)}
}

// Name reports the tool name.
func (g *Git) Name() string { return "git" }

// UsesWorkingCopy reports that git keeps an on-disk copy.
func (g *Git) UsesWorkingCopy() bool { return true }

// Detect reports whether dir holds a git working copy.
func (g *Git) Detect(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Clone materializes a fresh working copy of remote at dir.
func (g *Git) Clone(ctx context.Context, remote, dir string) error {
	if strings.TrimSpace(remote) == "" {
		return errors.New("remote uri required")
	}
	if strings.TrimSpace(dir) == "" {
		return errors.New("working copy path required")
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("create clone parent: %w", err)
	}
	return g.run(ctx, "git clone", []string{"clone", "--origin", "origin", "--", remote, dir})
}

// Pull refreshes the working copy at dir, pruning refs deleted upstream.
func (g *Git) Pull(ctx context.Context, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("working copy path required")
	}
	if !g.Detect(dir) {
		return fmt.Errorf("git fetch: %w: %s", ErrMissingWorkingCopy, dir)
	}
	return g.run(ctx, "git fetch", []string{"-C", dir, "fetch", "--prune", "origin"})
}

// Heads lists the remote-tracking branch heads of the working copy at dir.
func (g *Git) Heads(ctx context.Context, remote, dir string) ([]Ref, error) {
	_ = remote
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("working copy path required")
	}
	args := []string{
		"-C", dir,
		"for-each-ref",
		"--format=%(refname:lstrip=3)\t%(objectname)",
		"refs/remotes/origin",
	}
	var refs []Ref
	err := g.exec.Run(ctx, g.binary, args, func(line string) {
		name, commit, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok {
			return
		}
		name = strings.TrimSpace(name)
		commit = strings.TrimSpace(commit)
		// origin/HEAD is a symref, not a branch.
		if name == "" || commit == "" || name == "HEAD" {
			return
		}
		refs = append(refs, Ref{Name: name, Commit: commit})
	})
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref: %w", err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

var _ Client = (*Git)(nil)
