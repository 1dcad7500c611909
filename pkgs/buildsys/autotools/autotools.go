package autotools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/runner"
	"github.com/coolyjg/rust-rocksdb-spdk/pkgs/buildsys"
)

// AutoTools wraps an in-tree configure + make build with chainable
// configuration. Both steps run inside SourceDir, which is how projects
// with a hand written configure script (SPDK, DPDK) expect to be built.
type AutoTools struct {
	SourceDir string
	shell     string
	makeBin   string
	jobs      int
	env       map[string]string
	r         runner.Runner
}

var _ buildsys.BuildSystem = (*AutoTools)(nil)

// New creates a new AutoTools helper for sourceDir running processes with r.
func New(r runner.Runner, sourceDir string) *AutoTools {
	return &AutoTools{
		SourceDir: sourceDir,
		shell:     "bash",
		makeBin:   "make",
		env:       map[string]string{},
		r:         r,
	}
}

func (a *AutoTools) Source(dir string) {
	a.SourceDir = dir
}

// Jobs sets the -j value of the build step. Values below 1 leave it unset.
func (a *AutoTools) Jobs(n int) *AutoTools {
	a.jobs = n
	return a
}

// Env sets a variable for the configure and make processes only.
func (a *AutoTools) Env(key, value string) {
	if a.env == nil {
		a.env = map[string]string{}
	}
	a.env[key] = value
}

// Configure runs ./configure in the source tree.
func (a *AutoTools) Configure(ctx context.Context, args ...string) error {
	return a.r.Run(ctx, &runner.Cmd{
		Step: "configure",
		Path: a.shell,
		Args: append([]string{"./configure"}, args...),
		Dir:  a.SourceDir,
		Env:  a.env,
	})
}

// Build runs make (plus args) in the source tree.
func (a *AutoTools) Build(ctx context.Context, args ...string) error {
	var cmdArgs []string
	if a.jobs > 0 {
		cmdArgs = append(cmdArgs, fmt.Sprintf("-j%d", a.jobs))
	}
	cmdArgs = append(cmdArgs, args...)
	return a.r.Run(ctx, &runner.Cmd{
		Step: "make",
		Path: a.makeBin,
		Args: cmdArgs,
		Dir:  a.SourceDir,
		Env:  a.env,
	})
}

// OutputDir returns the in-tree build directory.
func (a *AutoTools) OutputDir() string {
	return filepath.Join(a.SourceDir, "build")
}
