// Package spdk builds SPDK with its own configure/make pipeline and merges
// the resulting static archives into a single shared object.
//
// The build is an explicit state machine:
//
//	NotFetched → Fetched → Configured → Built → Merged → Installed
//
// Each transition is a method that refuses to run out of order, so tests can
// drive and fail every step on its own through a fake runner.
package spdk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/runner"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/sources"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/vcs"
	"github.com/coolyjg/rust-rocksdb-spdk/pkgs/buildsys/autotools"
)

// State is a step of the SPDK build.
type State int

const (
	NotFetched State = iota
	Fetched
	Configured
	Built
	Merged
	Installed
)

var stateNames = [...]string{"not-fetched", "fetched", "configured", "built", "merged", "installed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	// ArtifactName is the merged shared object.
	ArtifactName = "libspdk_fat.so"
	// MockArchive is SPDK's unit test mock library, never merged.
	MockArchive = "libspdk_ut_mock.a"
)

// SystemLibs are linked into the merged object: async I/O, NUMA, UUID and
// libcrypto.
var SystemLibs = []string{"aio", "numa", "uuid", "crypto"}

// LinkLibs are the libraries a consumer of the merged object links against,
// in order.
var LinkLibs = []string{"spdk_fat", "aio", "numa", "uuid", "crypto", "stdc++", "ssl"}

// Options configures a Builder.
type Options struct {
	Root       string // directory containing the spdk tree
	OutDir     string // where the merged object is linked
	InstallDir string // where it is copied for executables; OutDir/../../.. when empty
	Jobs       int
	CC         string // C compiler for configure and the linker driver, "cc" when empty
}

// Artifact is the merged SPDK shared object.
type Artifact struct {
	Path        string
	InstalledAt string
	Archives    []string // archives merged, in link order
}

// Builder runs the SPDK build.
type Builder struct {
	opts  Options
	r     runner.Runner
	sync  *vcs.Synchronizer
	tools *autotools.AutoTools

	state    State
	artifact *Artifact
}

// New returns a builder in the NotFetched state.
func New(opts Options, r runner.Runner, sync *vcs.Synchronizer) *Builder {
	tools := autotools.New(r, filepath.Join(opts.Root, "spdk")).Jobs(opts.Jobs)
	if opts.CC != "" {
		tools.Env("CC", opts.CC)
	} else {
		opts.CC = "cc"
	}
	if opts.InstallDir == "" {
		opts.InstallDir = filepath.Join(opts.OutDir, "..", "..", "..")
	}
	return &Builder{
		opts:  opts,
		r:     r,
		sync:  sync,
		tools: tools,
	}
}

// State returns the current state.
func (b *Builder) State() State { return b.state }

// SourceDir returns the SPDK source tree.
func (b *Builder) SourceDir() string { return b.tools.SourceDir }

// IncludeDir returns the headers generated by the SPDK build.
func (b *Builder) IncludeDir() string { return IncludeDir(b.opts.Root) }

// IncludeDir returns the generated headers of the spdk tree under root.
func IncludeDir(root string) string {
	return filepath.Join(root, "spdk", "build", "include")
}

func (b *Builder) expect(step string, want State) error {
	if b.state != want {
		return fmt.Errorf("spdk %s: requires state %s, current state is %s", step, want, b.state)
	}
	return nil
}

// Fetch checks out the spdk submodule recursively when spdk/.git is absent.
// A failed fetch is only fatal when it leaves the tree empty.
func (b *Builder) Fetch(ctx context.Context) error {
	if err := b.expect("fetch", NotFetched); err != nil {
		return err
	}
	tree := vcs.Tree{Dir: "spdk", Marker: filepath.Join("spdk", ".git"), Recursive: true}
	if _, err := b.sync.Ensure(ctx, tree); err != nil {
		log.Warnf("spdk fetch: %v", err)
	}
	if err := sources.CheckRoot(b.SourceDir()); err != nil {
		return err
	}
	b.state = Fetched
	return nil
}

// Configure runs ./configure --without-isal.
func (b *Builder) Configure(ctx context.Context) error {
	if err := b.expect("configure", Fetched); err != nil {
		return err
	}
	if err := b.tools.Configure(ctx, "--without-isal"); err != nil {
		return err
	}
	b.state = Configured
	return nil
}

// Build runs make with the configured job count.
func (b *Builder) Build(ctx context.Context) error {
	if err := b.expect("make", Configured); err != nil {
		return err
	}
	if err := b.tools.Build(ctx); err != nil {
		return err
	}
	b.state = Built
	return nil
}

// ArchiveDirs returns the directories whose archives are merged: SPDK's own
// build tree, then DPDK's.
func (b *Builder) ArchiveDirs() []string {
	src := b.SourceDir()
	return []string{
		filepath.Join(src, "build", "lib"),
		filepath.Join(src, "dpdk", "build", "lib"),
	}
}

// Discover lists every lib*.a in dirs, in directory order then name order,
// skipping MockArchive.
func Discover(dirs ...string) ([]string, error) {
	var out []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("spdk merge: %w", err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || name == MockArchive {
				continue
			}
			if strings.HasPrefix(name, "lib") && strings.HasSuffix(name, ".a") {
				out = append(out, filepath.Join(dir, name))
			}
		}
	}
	return out, nil
}

// Merge links every discovered archive with whole-archive semantics into
// OutDir/libspdk_fat.so. Objects are kept even when unreferenced because
// SPDK registers its subsystems from constructors.
func (b *Builder) Merge(ctx context.Context) error {
	if err := b.expect("merge", Built); err != nil {
		return err
	}
	archives, err := Discover(b.ArchiveDirs()...)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(b.opts.OutDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(b.opts.OutDir, ArtifactName)
	args := []string{"-shared", "-o", dst}
	for _, lib := range SystemLibs {
		args = append(args, "-l"+lib)
	}
	args = append(args, "-Wl,--whole-archive")
	args = append(args, archives...)
	args = append(args, "-Wl,--no-whole-archive")

	log.Infof("linking %s from %d archives", ArtifactName, len(archives))
	if err := b.r.Run(ctx, &runner.Cmd{Step: "merge " + ArtifactName, Path: b.opts.CC, Args: args}); err != nil {
		return err
	}
	b.artifact = &Artifact{Path: dst, Archives: archives}
	b.state = Merged
	return nil
}

// Install copies the merged object next to the final executables.
func (b *Builder) Install() error {
	if err := b.expect("install", Merged); err != nil {
		return err
	}
	dst := filepath.Join(b.opts.InstallDir, ArtifactName)
	if err := copyFile(b.artifact.Path, dst); err != nil {
		return fmt.Errorf("install %s: %w", ArtifactName, err)
	}
	b.artifact.InstalledAt = dst
	b.state = Installed
	return nil
}

// Run drives the whole state machine from the current state.
func (b *Builder) Run(ctx context.Context) (*Artifact, error) {
	steps := []struct {
		from State
		fn   func() error
	}{
		{NotFetched, func() error { return b.Fetch(ctx) }},
		{Fetched, func() error { return b.Configure(ctx) }},
		{Configured, func() error { return b.Build(ctx) }},
		{Built, func() error { return b.Merge(ctx) }},
		{Merged, b.Install},
	}
	for _, s := range steps {
		if b.state != s.from {
			continue
		}
		if err := s.fn(); err != nil {
			return nil, err
		}
	}
	return b.artifact, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
