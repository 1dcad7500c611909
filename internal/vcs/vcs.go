package vcs

import (
	"context"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/runner"
)

// VCS defines the version control operations a build needs.
type VCS interface {
	// SubmoduleUpdate runs `git submodule update --init` in dir, recursing
	// into nested submodules when recursive is set.
	SubmoduleUpdate(ctx context.Context, dir string, recursive bool) error
}

// gitVCS implements VCS using git.
type gitVCS struct {
	git string
	r   runner.Runner
}

// GitOption configures gitVCS.
type GitOption func(*gitVCS)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		g.git = path
	}
}

// NewGitVCS creates a new git VCS instance running git through r.
func NewGitVCS(r runner.Runner, opts ...GitOption) VCS {
	g := &gitVCS{git: "git", r: r}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gitVCS) SubmoduleUpdate(ctx context.Context, dir string, recursive bool) error {
	args := []string{"submodule", "update", "--init"}
	if recursive {
		args = append(args, "--recursive")
	}
	return g.run(ctx, dir, args...)
}

func (g *gitVCS) run(ctx context.Context, dir string, args ...string) error {
	return g.r.Run(ctx, &runner.Cmd{
		Step: "submodule sync",
		Path: g.git,
		Args: args,
		Dir:  dir,
	})
}
