// Package cc drives a C++ compiler over a source list to produce a static
// archive.
package cc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/qiniu/x/log"
	"golang.org/x/sync/errgroup"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/runner"
)

// Archive describes one static library to build.
type Archive struct {
	Name   string // library name without prefix or extension, e.g. "rocksdb"
	Config Config
	Files  []string
}

// Artifact is a built static library.
type Artifact struct {
	Name string
	Path string
	Dir  string
}

// Compiler compiles archives into OutDir.
type Compiler struct {
	Toolchain Toolchain
	Runner    runner.Runner
	OutDir    string
	Jobs      int

	mu        sync.Mutex
	supported map[string]bool
}

// NewCompiler returns a compiler writing into outDir with at most jobs
// concurrent compiler processes.
func NewCompiler(tc Toolchain, r runner.Runner, outDir string, jobs int) *Compiler {
	if jobs < 1 {
		jobs = 1
	}
	return &Compiler{Toolchain: tc, Runner: r, OutDir: outDir, Jobs: jobs}
}

// Build compiles every file of a and archives the objects. A failure of any
// compiler or archiver process aborts the build and no archive is left behind.
func (c *Compiler) Build(ctx context.Context, a Archive) (*Artifact, error) {
	objDir := filepath.Join(c.OutDir, "obj", a.Name)
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return nil, err
	}

	cfg, err := c.resolveFlags(ctx, a.Config)
	if err != nil {
		return nil, err
	}

	log.Infof("compiling %s: %d files with %d jobs", a.Name, len(a.Files), c.Jobs)
	objs := make([]string, len(a.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Jobs)
	for i, src := range a.Files {
		objs[i] = filepath.Join(objDir, objectName(src)+c.Toolchain.objExt())
		obj := objs[i]
		g.Go(func() error {
			return c.Runner.Run(gctx, &runner.Cmd{
				Step: "compile " + a.Name,
				Path: c.Toolchain.CXX,
				Args: c.Toolchain.compileArgs(cfg, src, obj),
				Env:  c.Toolchain.Env,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := filepath.Join(c.OutDir, c.Toolchain.ArchiveName(a.Name))
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	err = c.Runner.Run(ctx, &runner.Cmd{
		Step: "archive " + a.Name,
		Path: c.Toolchain.AR,
		Args: c.Toolchain.archiveArgs(out, objs),
		Env:  c.Toolchain.Env,
	})
	if err != nil {
		os.Remove(out)
		return nil, err
	}
	return &Artifact{Name: a.Name, Path: out, Dir: c.OutDir}, nil
}

// resolveFlags drops the IfSupported flags the compiler rejects.
func (c *Compiler) resolveFlags(ctx context.Context, cfg Config) (Config, error) {
	out := cfg.Clone()
	out.Flags = out.Flags[:0]
	for _, f := range cfg.Flags {
		if !f.IfSupported {
			out.Flags = append(out.Flags, f)
			continue
		}
		ok, err := c.supports(ctx, f.Value)
		if err != nil {
			return Config{}, err
		}
		if ok {
			out.Flags = append(out.Flags, F(f.Value))
		} else {
			log.Debugf("compiler %s does not support %s, dropping it", c.Toolchain.CXX, f.Value)
		}
	}
	return out, nil
}

// supports compiles an empty translation unit with flag. Results are cached
// for the lifetime of c.
func (c *Compiler) supports(ctx context.Context, flag string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok, found := c.supported[flag]; found {
		return ok, nil
	}
	src := filepath.Join(c.OutDir, "flag_check.cpp")
	if err := os.WriteFile(src, []byte("int main(void) { return 0; }\n"), 0o644); err != nil {
		return false, err
	}
	obj := filepath.Join(c.OutDir, "flag_check"+c.Toolchain.objExt())
	cfg := Config{Flags: []Flag{F(flag)}}
	err := c.Runner.Run(ctx, &runner.Cmd{
		Step: "check flag " + flag,
		Path: c.Toolchain.CXX,
		Args: c.Toolchain.compileArgs(cfg, src, obj),
		Env:  c.Toolchain.Env,
	})
	if c.supported == nil {
		c.supported = map[string]bool{}
	}
	c.supported[flag] = err == nil
	return err == nil, nil
}

var objReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", ".", "_")

// objectName flattens a source path into a unique object file stem.
func objectName(src string) string {
	src = filepath.ToSlash(filepath.Clean(src))
	src = strings.TrimLeft(src, "/")
	return objReplacer.Replace(src)
}

func (a *Artifact) String() string {
	return fmt.Sprintf("%s (%s)", a.Name, a.Path)
}
