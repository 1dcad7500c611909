// Package features turns the enabled build features and the target CPU
// features into compiler configuration, link libraries and probes.
package features

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/cc"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/platform"
)

// Name is a build feature toggle.
type Name string

const (
	Snappy   Name = "snappy"
	LZ4      Name = "lz4"
	Zstd     Name = "zstd"
	Zlib     Name = "zlib"
	Bzip2    Name = "bzip2"
	RTTI     Name = "rtti"
	Jemalloc Name = "jemalloc"
	IOUring  Name = "io-uring"
	SPDK     Name = "spdk"
)

// Known lists every supported feature.
var Known = []Name{Snappy, LZ4, Zstd, Zlib, Bzip2, RTTI, Jemalloc, IOUring, SPDK}

// Set maps a feature to its enabled state. Features are independent toggles.
type Set map[Name]bool

// ParseSet parses a comma separated feature list such as "snappy,lz4".
func ParseSet(s string) (Set, error) {
	set := Set{}
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n := Name(f)
		if !slices.Contains(Known, n) {
			return nil, fmt.Errorf("unknown feature %q", f)
		}
		set[n] = true
	}
	return set, nil
}

// Enabled reports whether n is on.
func (s Set) Enabled(n Name) bool { return s[n] }

// Names returns the enabled features, sorted.
func (s Set) Names() []Name {
	out := make([]Name, 0, len(s))
	for n, on := range s {
		if on {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Set) String() string {
	names := s.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ",")
}

// CPUFeatures is the set of instruction set extensions of the target, using
// the LLVM names: sse2, sse4.1, sse4.2, avx2, bmi1, lzcnt, pclmulqdq.
type CPUFeatures map[string]bool

// ParseCPU parses a comma separated CPU feature list.
func ParseCPU(s string) CPUFeatures {
	out := CPUFeatures{}
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out[f] = true
		}
	}
	return out
}

// DepIncludes holds include directories exported by peer builds of the
// compression libraries. Empty entries fall back to default search paths.
type DepIncludes struct {
	LZ4   string
	Zstd  string
	Zlib  string
	Bzip2 string
}

// Delta is what the features add to the RocksDB build.
type Delta struct {
	cc.Config
	Libs    []string // libraries provided by peer builds or the system
	Probes  []string // pkg-config packages that must be installed
	Sources []string // extra sources, relative to the RocksDB root
}

type cpuFlag struct {
	feature string
	flag    string
	define  string
}

// Ordered as in RocksDB's build_tools/build_detect_platform.
var cpuFlags = []cpuFlag{
	{"sse2", "-msse2", ""},
	{"sse4.1", "-msse4.1", ""},
	{"sse4.2", "-msse4.2", "HAVE_SSE42"},
	{"avx2", "-mavx2", "HAVE_AVX2"},
	{"bmi1", "-mbmi", "HAVE_BMI"},
	{"lzcnt", "-mlzcnt", "HAVE_LZCNT"},
	{"pclmulqdq", "-mpclmul", "HAVE_PCLMUL"},
}

// Resolve computes the configuration delta of set for triple t.
func Resolve(set Set, t platform.Triple, cpu CPUFeatures, deps DepIncludes) Delta {
	var d Delta
	family := platform.FamilyOf(t)

	codec := func(n Name, define, include, lib string) {
		if !set.Enabled(n) {
			return
		}
		d.Define(cc.Def(define, "1"))
		if include != "" {
			d.Include(include)
		}
		if lib != "" {
			d.Libs = append(d.Libs, lib)
		}
	}
	// snappy is compiled from the bundled tree, the others come from peers.
	codec(Snappy, "SNAPPY", "snappy/", "")
	codec(LZ4, "LZ4", deps.LZ4, "lz4")
	codec(Zstd, "ZSTD", deps.Zstd, "zstd")
	codec(Zlib, "ZLIB", deps.Zlib, "z")
	codec(Bzip2, "BZIP2", deps.Bzip2, "bz2")

	if set.Enabled(RTTI) {
		d.Define(cc.Def("USE_RTTI", "1"))
	}

	if t.IsX86_64() {
		for _, f := range cpuFlags {
			if !cpu[f.feature] {
				continue
			}
			if f.feature == "pclmulqdq" && family == platform.Android {
				continue
			}
			d.Flag(cc.FIfSupported(f.flag))
			if f.define != "" {
				d.Define(cc.Def(f.define, "1"))
			}
		}
	}

	d.Define(cc.Def("ROCKSDB_SUPPORT_THREAD_LOCAL"))

	if set.Enabled(Jemalloc) {
		d.Define(cc.Def("WITH_JEMALLOC", "ON"))
		d.Libs = append(d.Libs, "jemalloc")
		if family == platform.Windows {
			d.Sources = append(d.Sources, "port/win/win_jemalloc.cc")
		}
	}

	if set.Enabled(IOUring) && family == platform.Linux {
		d.Probes = append(d.Probes, "liburing")
		d.Define(cc.Def("ROCKSDB_IOURING_PRESENT", "1"))
		d.Libs = append(d.Libs, "uring")
	}

	return d
}
