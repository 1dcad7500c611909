package link

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/platform"
)

// Prefix starts every emitted directive line.
const Prefix = "rocksys:"

// CgoFileName is the cgo flags file written next to the bindings.
const CgoFileName = "link_flags.go"

// Emitter streams directives to w, one per line, and keeps them in
// emission order.
type Emitter struct {
	w  io.Writer
	ds []Directive
}

// NewEmitter returns an emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes ds in order.
func (e *Emitter) Emit(ds ...Directive) error {
	for _, d := range ds {
		if _, err := fmt.Fprintf(e.w, "%s%s\n", Prefix, d); err != nil {
			return err
		}
		e.ds = append(e.ds, d)
	}
	return nil
}

// Directives returns what was emitted so far.
func (e *Emitter) Directives() []Directive {
	return e.ds
}

// LDFlags converts directives to linker flags, in order. Metadata is
// skipped. Static libraries are bracketed with -Bstatic where the linker
// supports it.
func LDFlags(t platform.Triple, ds []Directive) []string {
	gnu := !t.Contains("apple") && !t.IsMSVC()
	var flags []string
	for _, d := range ds {
		switch d.Kind {
		case KindSearch:
			flags = append(flags, "-L"+filepath.ToSlash(d.Path))
		case KindLib:
			if d.Mode == Static && gnu {
				flags = append(flags, "-Wl,-Bstatic", "-l"+d.Name, "-Wl,-Bdynamic")
				continue
			}
			flags = append(flags, "-l"+d.Name)
		}
	}
	return flags
}

// WriteCgo writes a Go file in package pkg carrying the directives as a
// #cgo LDFLAGS line, so the generated bindings link without a build script.
func WriteCgo(path, pkg string, t platform.Triple, ds []Directive) error {
	var b bytes.Buffer
	b.WriteString("// Code generated by rocksys. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("/*\n")
	if flags := LDFlags(t, ds); len(flags) > 0 {
		fmt.Fprintf(&b, "#cgo LDFLAGS: %s\n", strings.Join(flags, " "))
	}
	b.WriteString("*/\nimport \"C\"\n")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b.Bytes(), 0o644)
}
