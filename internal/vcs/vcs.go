package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors reported by clients. Callers classify with errors.Is.
var (
	// ErrUnknownType reports a version control system no client handles.
	ErrUnknownType = errors.New("unknown version control type")
	// ErrNoWorkingCopy reports a clone or pull on a tool that never
	// maintains an on-disk working copy.
	ErrNoWorkingCopy = errors.New("tool does not maintain a working copy")
	// ErrMissingWorkingCopy reports a pull against a path that holds no
	// initialized working copy.
	ErrMissingWorkingCopy = errors.New("working copy not initialized")
)

// Ref is one discovered branch head: a ref name paired with the commit
// identifier it currently points at.
type Ref struct {
	Name   string
	Commit string
}

// Client abstracts the version control tool behind a repository.
type Client interface {
	// Name reports the tool name used in logs and status rows.
	Name() string
	// UsesWorkingCopy reports whether the tool keeps an on-disk copy that
	// must be cloned and pulled.
	UsesWorkingCopy() bool
	// Detect reports whether dir already holds a working copy for this tool.
	Detect(dir string) bool
	// Clone materializes a fresh working copy of remote at dir.
	Clone(ctx context.Context, remote, dir string) error
	// Pull refreshes the working copy at dir from its remote.
	Pull(ctx context.Context, dir string) error
	// Heads lists the current branch heads used as discovery cursors.
	// Working-copy tools read them locally after a pull; Subversion asks
	// the remote directly.
	Heads(ctx context.Context, remote, dir string) ([]Ref, error)
}

// ForType returns the client matching a repository's version control system.
func ForType(vcsType string, opts ...Option) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(vcsType)) {
	case "git":
		return NewGit(opts...), nil
	case "hg":
		return NewMercurial(opts...), nil
	case "svn":
		return NewSubversion(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, vcsType)
	}
}
