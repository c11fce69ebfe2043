package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Subversion reads remote repositories with the svn binary. No working copy
// is maintained; discovery asks the remote for its head revision.
type Subversion struct {
	tool
}

// NewSubversion constructs a Subversion client using defaults.
func NewSubversion(opts ...Option) *Subversion {
	return &Subversion{tool: newTool("svn", opts)}
}

// Name reports the tool name.
func (s *Subversion) Name() string { return "svn" }

// UsesWorkingCopy reports that Subversion keeps no on-disk copy.
func (s *Subversion) UsesWorkingCopy() bool { return false }

// Detect always reports false; there is never a working copy to find.
func (s *Subversion) Detect(dir string) bool { return false }

// Clone is unsupported for Subversion repositories.
func (s *Subversion) Clone(ctx context.Context, remote, dir string) error {
	return fmt.Errorf("svn clone: %w", ErrNoWorkingCopy)
}

// Pull is unsupported for Subversion repositories.
func (s *Subversion) Pull(ctx context.Context, dir string) error {
	return fmt.Errorf("svn pull: %w", ErrNoWorkingCopy)
}

// Heads reports the remote head revision as a single ref named "revision".
func (s *Subversion) Heads(ctx context.Context, remote, dir string) ([]Ref, error) {
	_ = dir
	if strings.TrimSpace(remote) == "" {
		return nil, errors.New("remote uri required")
	}
	args := []string{"info", "--non-interactive", "--show-item", "revision", "--", remote}
	var revision string
	err := s.exec.Run(ctx, s.binary, args, func(line string) {
		line = strings.TrimSpace(line)
		if revision != "" || !isRevision(line) {
			return
		}
		revision = line
	})
	if err != nil {
		return nil, fmt.Errorf("svn info: %w", err)
	}
	if revision == "" {
		return nil, errors.New("svn info reported no revision")
	}
	return []Ref{{Name: "revision", Commit: revision}}, nil
}

func isRevision(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var _ Client = (*Subversion)(nil)
