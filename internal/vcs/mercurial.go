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

// Mercurial maintains local working copies with the hg binary. Clones skip
// the checkout and pulls only add changesets, so the copy stays bare-like.
type Mercurial struct {
	tool
}

// NewMercurial constructs a Mercurial client using defaults.
func NewMercurial(opts ...Option) *Mercurial {
	return &Mercurial{tool: newTool("hg", opts)}
}

// Name reports the tool name.
func (m *Mercurial) Name() string { return "hg" }

// UsesWorkingCopy reports that Mercurial keeps an on-disk copy.
func (m *Mercurial) UsesWorkingCopy() bool { return true }

// Detect reports whether dir holds a Mercurial working copy.
func (m *Mercurial) Detect(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, ".hg"))
	return err == nil
}

// Clone materializes a fresh working copy of remote at dir.
func (m *Mercurial) Clone(ctx context.Context, remote, dir string) error {
	if strings.TrimSpace(remote) == "" {
		return errors.New("remote uri required")
	}
	if strings.TrimSpace(dir) == "" {
		return errors.New("working copy path required")
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("create clone parent: %w", err)
	}
	return m.run(ctx, "hg clone", []string{"clone", "--noupdate", "--", remote, dir})
}

// Pull refreshes the working copy at dir from its default remote.
func (m *Mercurial) Pull(ctx context.Context, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("working copy path required")
	}
	if !m.Detect(dir) {
		return fmt.Errorf("hg pull: %w: %s", ErrMissingWorkingCopy, dir)
	}
	return m.run(ctx, "hg pull", []string{"-R", dir, "pull"})
}

// Heads lists the tip of every open branch in the working copy at dir.
func (m *Mercurial) Heads(ctx context.Context, remote, dir string) ([]Ref, error) {
	_ = remote
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("working copy path required")
	}
	args := []string{"-R", dir, "branches", "--template", "{branch}\t{node}\n"}
	var refs []Ref
	err := m.exec.Run(ctx, m.binary, args, func(line string) {
		name, commit, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok {
			return
		}
		name = strings.TrimSpace(name)
		commit = strings.TrimSpace(commit)
		if name == "" || commit == "" {
			return
		}
		refs = append(refs, Ref{Name: name, Commit: commit})
	})
	if err != nil {
		return nil, fmt.Errorf("hg branches: %w", err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

var _ Client = (*Mercurial)(nil)
