// Package link decides, per native library, between linking a prebuilt copy
// and building from source, and emits the resulting link directives.
package link

import (
	"fmt"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/platform"
)

// Kind is the kind of a link directive.
type Kind int

const (
	KindLib Kind = iota + 1
	KindSearch
	KindMetadata
)

// Mode is how a library is linked.
type Mode string

const (
	Static Mode = "static"
	Dylib  Mode = "dylib"
)

// Directive is one instruction for the final link stage.
type Directive struct {
	Kind  Kind
	Name  string // library name, without lib prefix or extension
	Mode  Mode
	Path  string // search path
	Key   string // metadata key
	Value string // metadata value
}

// Lib links the named library.
func Lib(mode Mode, name string) Directive {
	return Directive{Kind: KindLib, Mode: mode, Name: name}
}

// Search adds a native library search path.
func Search(path string) Directive {
	return Directive{Kind: KindSearch, Path: path}
}

// Meta is an informational key/value pair for downstream consumers.
func Meta(key, value string) Directive {
	return Directive{Kind: KindMetadata, Key: key, Value: value}
}

func (d Directive) String() string {
	switch d.Kind {
	case KindLib:
		return fmt.Sprintf("link-lib=%s=%s", d.Mode, d.Name)
	case KindSearch:
		return "link-search=native=" + d.Path
	case KindMetadata:
		return d.Key + "=" + d.Value
	}
	return "unknown"
}

// MarshalText renders d as its directive line, without the prefix.
func (d Directive) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Override holds the per-library prebuilt signals, L_COMPILE, L_LIB_DIR and
// L_STATIC for library L.
type Override struct {
	Compile string // forces a source build when "1" or "true"
	LibDir  string // directory of a prebuilt copy
	Static  bool   // link the prebuilt copy statically
}

// ForcesCompile reports whether the override demands a source build.
func (o Override) ForcesCompile() bool {
	return strings.ToLower(o.Compile) == "true" || o.Compile == "1"
}

// Decision is the outcome of planning one library.
type Decision struct {
	Library    string
	Prebuilt   bool
	Directives []Directive // only set for prebuilt libraries
}

// Planner plans the libraries of one target.
type Planner struct {
	Triple    platform.Triple
	Overrides map[string]Override // keyed by upper case library name
}

// Plan decides how lib is obtained. A prebuilt C++ library (runtime set)
// also pulls in the platform C++ runtime; libraries built from source get
// theirs from the compiler step.
func (p *Planner) Plan(lib string, runtime bool) Decision {
	d := Decision{Library: lib}
	o := p.Overrides[strings.ToUpper(lib)]
	if o.ForcesCompile() || o.LibDir == "" {
		log.Debugf("link: building %s from source", lib)
		return d
	}
	mode := Dylib
	if o.Static {
		mode = Static
	}
	d.Prebuilt = true
	d.Directives = []Directive{Search(o.LibDir), Lib(mode, strings.ToLower(lib))}
	if rt, ok := Runtime(p.Triple); ok && runtime {
		d.Directives = append(d.Directives, rt)
	}
	log.Infof("link: using prebuilt %s from %s (%s)", lib, o.LibDir, mode)
	return d
}

// Runtime returns the C++ standard library for t: libc++ on Apple and the
// BSDs, libstdc++ on Linux.
func Runtime(t platform.Triple) (Directive, bool) {
	switch {
	case t.Contains("apple"), t.Contains("freebsd"), t.Contains("openbsd"):
		return Lib(Dylib, "c++"), true
	case t.Contains("linux"):
		return Lib(Dylib, "stdc++"), true
	}
	return Directive{}, false
}

// Archive returns the directives for a static archive compiled into dir,
// including the C++ runtime it was compiled against. Source builds link the
// runtime here, prebuilt libraries through Planner.Plan. It is omitted when
// cxx is false and on MSVC targets.
func Archive(t platform.Triple, name, dir string, cxx bool) []Directive {
	ds := []Directive{Search(dir), Lib(Static, name)}
	if !cxx || t.IsMSVC() {
		return ds
	}
	if t.Contains("android") {
		return append(ds, Lib(Dylib, "c++_shared"))
	}
	if rt, ok := Runtime(t); ok {
		return append(ds, rt)
	}
	return append(ds, Lib(Dylib, "stdc++"))
}
