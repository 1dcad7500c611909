// Package bindgen generates cgo bindings for the RocksDB C API, and for the
// SPDK headers when that subsystem is enabled.
//
// Headers are read by a small in-process C preprocessor and a tolerant
// declaration parser; no C compiler is involved. The output is a Go file
// aliasing each C type and wrapping each function, after the denylist has
// removed the items Go cannot express.
package bindgen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qiniu/x/log"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/cc"
	"github.com/coolyjg/rust-rocksdb-spdk/internal/diag"
)

// DefaultPackage is the Go package of the generated file.
const DefaultPackage = "librocksdb"

// FileName is the generated file, written to the output directory.
const FileName = "bindings.go"

// Options configures a generation run.
type Options struct {
	Headers      []string
	IncludePaths []string
	Defines      []cc.Define // predefined macros
	Denylist     Denylist
	Package      string // DefaultPackage when empty
	OutDir       string
}

// Set describes a generated binding file.
type Set struct {
	Path      string
	Package   string
	Headers   []string
	Constants []string
	Types     []string
	Functions []string
	Omitted   []string // "kind name: reason", in declaration order
}

// Render generates the bindings in memory. Identical inputs produce
// identical bytes.
func Render(opts Options) ([]byte, *Set, error) {
	if len(opts.Headers) == 0 {
		return nil, nil, &diag.BindingError{Err: fmt.Errorf("no headers")}
	}
	pkg := opts.Package
	if pkg == "" {
		pkg = DefaultPackage
	}
	pp := newPreprocessor(opts.IncludePaths, opts.Defines)
	for _, h := range opts.Headers {
		if err := pp.File(h); err != nil {
			return nil, nil, &diag.BindingError{Header: h, Err: err}
		}
	}
	decls := parse(pp.Tokens())

	set := &Set{Package: pkg, Headers: opts.Headers}
	g := newGenerator(&opts.Denylist, set)
	g.constants(pp.Constants())
	g.classify(decls)
	for _, d := range decls {
		g.emit(d)
	}
	src, err := g.source(pkg, opts.Headers, opts.IncludePaths)
	if err != nil {
		return nil, nil, &diag.BindingError{Err: fmt.Errorf("format output: %w", err)}
	}
	return src, set, nil
}

// Generate renders the bindings and writes them to OutDir/bindings.go.
func Generate(opts Options) (*Set, error) {
	src, set, err := Render(opts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, &diag.BindingError{Err: err}
	}
	set.Path = filepath.Join(opts.OutDir, FileName)
	if err := os.WriteFile(set.Path, src, 0o644); err != nil {
		return nil, &diag.BindingError{Err: fmt.Errorf("couldn't write bindings: %w", err)}
	}
	log.Infof("bindgen: wrote %s (%d functions, %d types, %d constants, %d omitted)",
		set.Path, len(set.Functions), len(set.Types), len(set.Constants), len(set.Omitted))
	return set, nil
}

// ReadConstants preprocesses header and returns its integer macros.
func ReadConstants(header string, includePaths []string) (map[string]int64, error) {
	pp := newPreprocessor(includePaths, nil)
	if err := pp.File(header); err != nil {
		return nil, &diag.BindingError{Header: header, Err: err}
	}
	out := map[string]int64{}
	for _, c := range pp.Constants() {
		out[c.Name] = c.Value
	}
	return out, nil
}
