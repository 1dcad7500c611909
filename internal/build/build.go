// Package build runs a complete native build: the SPDK subsystem when
// enabled, the RocksDB and snappy archives or their prebuilt copies, the
// cgo bindings, and the link directives for the final binary.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/qiniu/x/log"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/bindgen"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/cc"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/config"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/link"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/platform"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/runner"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/sources"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/spdk"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/vcs"
)

// RocksDBTree is the RocksDB submodule, fetched from the parent repository.
var RocksDBTree = vcs.Tree{Dir: "rocksdb", Marker: filepath.Join("rocksdb", "AUTHORS")}

// Options configures a Builder. Zero values select the real implementations.
type Options struct {
	Runner  runner.Runner
	VCS     vcs.VCS
	Stdout  io.Writer // directive stream
	Package string    // Go package of the generated files
	Force   bool      // ignore the build cache
}

// Builder builds one configuration.
type Builder struct {
	cfg   *config.Config
	r     runner.Runner
	sync  *vcs.Synchronizer
	out   io.Writer
	pkg   string
	force bool
}

// Result is the outcome of a successful build.
type Result struct {
	Plan       *Plan
	Version    string // empty when RocksDB is prebuilt
	SPDK       *spdk.Artifact
	Bindings   *bindgen.Set
	Archives   []*cc.Artifact
	Directives []link.Directive
	CgoFile    string
}

// New returns a builder for cfg.
func New(cfg *config.Config, opts Options) *Builder {
	if opts.Runner == nil {
		opts.Runner = runner.New()
	}
	if opts.VCS == nil {
		opts.VCS = vcs.NewGitVCS(opts.Runner)
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Package == "" {
		opts.Package = bindgen.DefaultPackage
	}
	return &Builder{
		cfg: cfg,
		r:   opts.Runner,
		sync: &vcs.Synchronizer{
			VCS:     opts.VCS,
			Root:    cfg.Root,
			RepoDir: filepath.Dir(cfg.Root),
		},
		out:   opts.Stdout,
		pkg:   opts.Package,
		force: opts.Force,
	}
}

// Sync fetches the RocksDB submodule when it is missing.
func (b *Builder) Sync(ctx context.Context) error {
	ran, err := b.sync.Ensure(ctx, RocksDBTree)
	if err != nil {
		return fmt.Errorf("update submodules: %w", err)
	}
	if !ran {
		log.Debugf("%s is present, skipping submodule update", RocksDBTree.Marker)
	}
	return nil
}

// Bindings generates the cgo bindings into the output directory.
func (b *Builder) Bindings() (*bindgen.Set, error) {
	p := b.Plan()
	return bindgen.Generate(p.Bindings)
}

// Run builds everything in order: the RocksDB submodule check, the source
// tree checks, SPDK, the bindings, RocksDB, snappy, then the metadata. The
// first failure stops the build, and a missing source tree stops it before
// any process runs.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	p := b.Plan()
	res := &Result{Plan: p}
	emitter := link.NewEmitter(b.out)
	log.Infof("building for %s (%s), features: %s", p.Target, p.Family, b.cfg.Features)

	if err := os.MkdirAll(b.cfg.OutDir, 0o755); err != nil {
		return nil, err
	}

	if err := b.Sync(ctx); err != nil {
		return nil, err
	}
	if err := b.checkRoots(p); err != nil {
		return nil, err
	}

	if p.SPDK {
		art, err := b.buildSPDK(ctx)
		if err != nil {
			return nil, err
		}
		res.SPDK = art
		for _, lib := range spdk.LinkLibs {
			if err := emitter.Emit(link.Lib(link.Dylib, lib)); err != nil {
				return nil, err
			}
		}
		if err := emitter.Emit(link.Search(b.cfg.OutDir)); err != nil {
			return nil, err
		}
	}

	set, err := bindgen.Generate(p.Bindings)
	if err != nil {
		return nil, err
	}
	res.Bindings = set

	cache, err := loadCache(b.cfg.OutDir)
	if err != nil {
		cache = &buildCache{}
	}
	tc := b.toolchain()
	compiler := cc.NewCompiler(tc, b.r, b.cfg.OutDir, b.cfg.Jobs)

	if !p.RocksDB.Prebuilt {
		v, err := ReadVersion(b.cfg.Path("rocksdb", "include"))
		if err != nil {
			return nil, err
		}
		res.Version = v.String()
		if _, err := WriteBuildVersion(b.cfg.OutDir, v, b.cfg.GitSHA); err != nil {
			return nil, err
		}
		if err := b.probe(ctx, p.RocksDB.Probes); err != nil {
			return nil, err
		}
	}
	if err := b.library(ctx, compiler, cache, &p.RocksDB, emitter, res); err != nil {
		return nil, err
	}

	if p.Snappy != nil {
		if err := b.library(ctx, compiler, cache, p.Snappy, emitter, res); err != nil {
			return nil, err
		}
	}

	if err := saveCache(b.cfg.OutDir, cache); err != nil {
		log.Warnf("could not save build cache: %v", err)
	}

	err = emitter.Emit(link.Meta("root_dir", b.cfg.Root), link.Meta("out_dir", b.cfg.OutDir))
	if err != nil {
		return nil, err
	}
	res.Directives = emitter.Directives()

	res.CgoFile = filepath.Join(b.cfg.OutDir, link.CgoFileName)
	if err := link.WriteCgo(res.CgoFile, b.pkg, b.cfg.Target, res.Directives); err != nil {
		return nil, err
	}
	log.Infof("build finished: %d directives, cgo flags in %s", len(res.Directives), res.CgoFile)
	return res, nil
}

// checkRoots fails on the first library built from source whose tree is
// missing or empty.
func (b *Builder) checkRoots(p *Plan) error {
	libs := []*Library{&p.RocksDB}
	if p.Snappy != nil {
		libs = append(libs, p.Snappy)
	}
	for _, lib := range libs {
		if lib.Prebuilt {
			continue
		}
		if err := sources.CheckRoot(b.cfg.Path(lib.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildSPDK(ctx context.Context) (*spdk.Artifact, error) {
	sb := spdk.New(spdk.Options{
		Root:   b.cfg.Root,
		OutDir: b.cfg.OutDir,
		Jobs:   b.cfg.Jobs,
		CC:     b.cfg.CC,
	}, b.r, &vcs.Synchronizer{VCS: b.sync.VCS, Root: b.cfg.Root})
	return sb.Run(ctx)
}

// library links a prebuilt library or compiles its archive, then emits its
// directives.
func (b *Builder) library(ctx context.Context, compiler *cc.Compiler, cache *buildCache, lib *Library, e *link.Emitter, res *Result) error {
	if !lib.Prebuilt {
		art, err := b.compile(ctx, compiler, cache, lib.Archive)
		if err != nil {
			return err
		}
		res.Archives = append(res.Archives, art)
	}
	if err := e.Emit(lib.Directives...); err != nil {
		return err
	}
	return e.Emit(lib.Libs...)
}

func (b *Builder) compile(ctx context.Context, compiler *cc.Compiler, cache *buildCache, a *cc.Archive) (*cc.Artifact, error) {
	fp := fingerprint(compiler.Toolchain, a)
	if path, ok := cache.fresh(a.Name, fp); ok && !b.force {
		log.Infof("%s is up to date", path)
		return &cc.Artifact{Name: a.Name, Path: path, Dir: b.cfg.OutDir}, nil
	}
	art, err := compiler.Build(ctx, *a)
	if err != nil {
		return nil, err
	}
	cache.set(a.Name, &buildEntry{Fingerprint: fp, Archive: art.Path, BuildTime: time.Now()})
	return art, nil
}

// probe checks that the pkg-config packages exist.
func (b *Builder) probe(ctx context.Context, pkgs []string) error {
	for _, pkg := range pkgs {
		log.Infof("probing %s with pkg-config", pkg)
		err := b.r.Run(ctx, &runner.Cmd{
			Step: "pkg-config",
			Path: "pkg-config",
			Args: []string{"--exists", "--print-errors", pkg},
		})
		if err != nil {
			return fmt.Errorf("the %s package was requested but is not available: %w", pkg, err)
		}
	}
	return nil
}

func (b *Builder) toolchain() cc.Toolchain {
	plat := platform.Resolve(b.cfg.Target)
	tc := cc.NewToolchain(plat.MSVC, plat.Family == platform.Windows, b.cfg.CXX, b.cfg.AR)
	tc.Env = plat.Env
	return tc
}
