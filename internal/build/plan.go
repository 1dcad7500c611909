package build

import (
	"path/filepath"
	"slices"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/bindgen"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/cc"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/features"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/link"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/platform"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/sources"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/spdk"
)

// BuildVersionFile is the generated replacement of util/build_version.cc,
// written to the output directory.
const BuildVersionFile = "build_version.cc"

// Library is the plan of one native library.
type Library struct {
	Name       string           `json:"name"`
	Prebuilt   bool             `json:"prebuilt"`
	Directives []link.Directive `json:"directives"` // prebuilt link, or the archive link once built
	Archive    *cc.Archive      `json:"archive,omitempty"`
	Probes     []string         `json:"probes,omitempty"` // pkg-config packages checked before compiling
	Libs       []link.Directive `json:"libs,omitempty"`   // extra libraries the archive depends on
}

// Plan is the fully resolved build, computed without running any process.
type Plan struct {
	Target   string          `json:"target"`
	Family   string          `json:"family"`
	Features []features.Name `json:"features"`
	SPDK     bool            `json:"spdk"`
	Sources  int             `json:"sources"`

	RocksDB  Library         `json:"rocksdb"`
	Snappy   *Library        `json:"snappy,omitempty"`
	Bindings bindgen.Options `json:"bindings"`
}

// Plan resolves the platform, the features, the source set and the link
// decisions. It reads no files and runs nothing, so two calls on the same
// configuration return equal plans.
func (b *Builder) Plan() *Plan {
	c := b.cfg
	t := c.Target
	plat := platform.Resolve(t)
	delta := features.Resolve(c.Features, t, c.CPU, c.Deps)
	spdkOn := c.Features.Enabled(features.SPDK)

	p := &Plan{
		Target:   t.String(),
		Family:   plat.Family.String(),
		Features: c.Features.Names(),
		SPDK:     spdkOn,
		Bindings: b.bindingOptions(t, spdkOn),
	}

	planner := &link.Planner{Triple: t, Overrides: c.Libraries}

	rocks := Library{Name: "rocksdb", Probes: delta.Probes}
	for _, lib := range delta.Libs {
		rocks.Libs = append(rocks.Libs, link.Lib(link.Dylib, lib))
	}
	if d := planner.Plan("rocksdb", true); d.Prebuilt {
		rocks.Prebuilt = true
		rocks.Directives = d.Directives
		rocks.Probes = nil
	} else {
		manifest := sources.Assemble(
			sources.Base(spdkOn),
			slices.Concat(plat.Added, delta.Sources),
			plat.Excluded,
		)
		p.Sources = len(manifest)
		files := append(manifest.Paths(c.Path("rocksdb")), filepath.Join(c.OutDir, BuildVersionFile))
		rocks.Archive = &cc.Archive{Name: "rocksdb", Config: b.rocksdbConfig(plat, delta), Files: files}
		rocks.Directives = link.Archive(t, "rocksdb", c.OutDir, true)
		for _, lib := range plat.Libs {
			rocks.Libs = append(rocks.Libs, link.Lib(link.Dylib, lib))
		}
	}
	p.RocksDB = rocks

	if c.Features.Enabled(features.Snappy) {
		snappy := &Library{Name: "snappy"}
		if d := planner.Plan("snappy", false); d.Prebuilt {
			snappy.Prebuilt = true
			snappy.Directives = d.Directives
		} else {
			snappy.Archive = &cc.Archive{Name: "snappy", Config: b.snappyConfig(plat), Files: []string{
				c.Path("snappy", "snappy.cc"),
				c.Path("snappy", "snappy-sinksource.cc"),
				c.Path("snappy", "snappy-c.cc"),
			}}
			snappy.Directives = link.Archive(t, "snappy", c.OutDir, true)
		}
		p.Snappy = snappy
	}
	return p
}

func (b *Builder) rocksdbConfig(plat platform.Platform, delta features.Delta) cc.Config {
	var cfg cc.Config
	cfg.Include(
		b.cfg.Path("rocksdb", "include"),
		b.cfg.Path("rocksdb"),
		b.cfg.Path("rocksdb", "third-party", "gtest-1.8.1", "fused-src"),
	)
	cfg.Merge(b.rooted(delta.Config))
	if b.cfg.Features.Enabled(features.SPDK) {
		cfg.Include(spdk.IncludeDir(b.cfg.Root))
	}
	cfg.Define(plat.Defines...)
	cfg.Merge(cc.RocksDBTuning(plat.MSVC, b.cfg.CXXStd))
	cfg.Include(b.cfg.Root)
	cfg.Define(cc.NoAssertions)
	return cfg
}

func (b *Builder) snappyConfig(plat platform.Platform) cc.Config {
	var cfg cc.Config
	cfg.Include(b.cfg.Path("snappy"), b.cfg.Root)
	cfg.Define(cc.NoAssertions)
	cfg.Merge(cc.SnappyTuning(plat.MSVC, plat.BigEndian))
	return cfg
}

// rooted resolves the relative include directories of cfg against the root.
func (b *Builder) rooted(cfg cc.Config) cc.Config {
	out := cfg.Clone()
	for i, dir := range out.Includes {
		if !filepath.IsAbs(dir) {
			out.Includes[i] = b.cfg.Path(filepath.FromSlash(dir))
		}
	}
	return out
}

func (b *Builder) bindingOptions(t platform.Triple, spdkOn bool) bindgen.Options {
	c := b.cfg
	opts := bindgen.Options{
		Headers:  []string{filepath.Join(c.IncludeDir, "rocksdb", "c.h")},
		Defines:  platform.CompilerMacros(t),
		Denylist: bindgen.Defaults(spdkOn),
		Package:  b.pkg,
		OutDir:   c.OutDir,
	}
	if spdkOn {
		opts.Headers = append(opts.Headers, c.Path("wrapper.h"))
		opts.IncludePaths = append(opts.IncludePaths, spdk.IncludeDir(c.Root), c.Path("spdk", "include"))
	}
	opts.IncludePaths = append(opts.IncludePaths, c.IncludeDir)
	return opts
}
