package bindgen

import (
	"bytes"
	"fmt"
	"go/format"
	gotoken "go/token"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

var builtinGo = map[string]string{
	"char":               "C.char",
	"signed char":        "C.schar",
	"unsigned char":      "C.uchar",
	"short":              "C.short",
	"unsigned short":     "C.ushort",
	"int":                "C.int",
	"unsigned int":       "C.uint",
	"long":               "C.long",
	"unsigned long":      "C.ulong",
	"long long":          "C.longlong",
	"unsigned long long": "C.ulonglong",
	"float":              "C.float",
	"double":             "C.double",
	"_Bool":              "C.bool",
}

type typeInfo struct {
	goName string // emitted Go name, empty when only reachable through C
	cName  string
	opaque bool
	denied bool
}

type generator struct {
	deny  *Denylist
	used  map[string]bool
	types map[string]*typeInfo
	set   *Set

	unsafe bool
	done   map[string]bool // typedefs already emitted
	body   bytes.Buffer
}

func newGenerator(deny *Denylist, set *Set) *generator {
	return &generator{
		deny:  deny,
		used:  map[string]bool{},
		types: map[string]*typeInfo{},
		done:  map[string]bool{},
		set:   set,
	}
}

// export turns a C identifier into an exported Go identifier.
func export(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	switch {
	case r == '_':
		return "X" + name
	case unicode.IsLower(r):
		return string(unicode.ToUpper(r)) + name[size:]
	}
	return name
}

func (g *generator) claim(name string) bool {
	if name == "" || g.used[name] {
		return false
	}
	g.used[name] = true
	return true
}

func (g *generator) omit(kind, name, reason string) {
	g.set.Omitted = append(g.set.Omitted, fmt.Sprintf("%s %s: %s", kind, name, reason))
}

func tagKey(keyword, tag string) string { return keyword + " " + tag }

// classify assigns Go names and opacity to every named type, in
// declaration order, before anything is emitted.
func (g *generator) classify(decls []decl) {
	for _, d := range decls {
		switch d := d.(type) {
		case *record:
			key := tagKey(d.keyword(), d.tag)
			if _, ok := g.types[key]; ok {
				continue
			}
			info := &typeInfo{cName: "C." + d.keyword() + "_" + d.tag}
			info.denied = g.deny.OmitsType(d.tag)
			info.opaque = g.deny.IsOpaque(d.tag) || d.complete && d.inexpressible()
			if !info.denied && (d.complete || info.opaque) {
				if n := export(d.tag); g.claim(n) {
					info.goName = n
				} else if info.opaque {
					info.denied = true
				}
			}
			g.types[key] = info
		case *enum:
			if d.tag == "" {
				continue
			}
			key := tagKey("enum", d.tag)
			info := &typeInfo{cName: "C.enum_" + d.tag, denied: g.deny.OmitsType(d.tag)}
			if !info.denied && g.claim(export(d.tag)) {
				info.goName = export(d.tag)
			}
			g.types[key] = info
		case *typedef:
			key := "name " + d.name
			if _, ok := g.types[key]; ok {
				continue
			}
			info := &typeInfo{cName: "C." + d.name, denied: g.deny.OmitsType(d.name)}
			under := g.underlying(d.typ)
			info.opaque = g.deny.IsOpaque(d.name) || under != nil && under.opaque
			if !info.denied {
				switch n := export(d.name); {
				case g.claim(n):
					info.goName = n
				case under != nil && under.goName == n:
					info.goName = n
				case info.opaque:
					info.denied = true
				}
			}
			g.types[key] = info
		}
	}
}

// underlying returns what is known about the type a typedef names directly.
func (g *generator) underlying(t *ctype) *typeInfo {
	switch t.kind {
	case kName:
		return g.types["name "+t.name]
	case kEnum:
		return g.types[tagKey("enum", t.name)]
	case kRecord:
		if t.name == "" {
			return &typeInfo{opaque: t.rec.complete && t.rec.inexpressible()}
		}
		return g.types[tagKey(t.rec.keyword(), t.name)]
	}
	return nil
}

// goType returns the Go and cgo spellings of t, and whether the Go side is
// an opaque placeholder needing a pointer conversion.
func (g *generator) goType(t *ctype) (goExpr, cExpr string, opaque, ok bool) {
	switch t.kind {
	case kBuiltin:
		n, ok := builtinGo[t.name]
		return n, n, false, ok
	case kName, kEnum, kRecord:
		var key, cName string
		switch t.kind {
		case kName:
			key, cName = "name "+t.name, "C."+t.name
		case kEnum:
			key, cName = tagKey("enum", t.name), "C.enum_"+t.name
		default:
			key, cName = tagKey(t.rec.keyword(), t.name), "C."+t.rec.keyword()+"_"+t.name
		}
		if t.name == "" {
			return "", "", false, false
		}
		info := g.types[key]
		switch {
		case info == nil:
			return cName, cName, false, true
		case info.denied:
			return "", "", false, false
		case info.goName == "":
			return info.cName, info.cName, false, !info.opaque
		}
		return info.goName, info.cName, info.opaque, true
	case kPointer:
		e := t.elem
		switch {
		case e.kind == kBuiltin && e.name == "void":
			return "unsafe.Pointer", "unsafe.Pointer", false, true
		case e.kind == kFunc:
			return "*[0]byte", "*[0]byte", false, true
		}
		ge, ce, op, ok := g.goType(e)
		return "*" + ge, "*" + ce, op, ok
	}
	return "", "", false, false
}

func (g *generator) printf(format string, args ...any) {
	fmt.Fprintf(&g.body, format, args...)
}

func (g *generator) constants(consts []Constant) {
	var emitted []Constant
	for _, c := range consts {
		switch {
		case g.deny.OmitsMacro(c.Name):
			g.omit("macro", c.Name, "denylisted")
		case !g.claim(export(c.Name)):
			g.omit("macro", c.Name, "name collision")
		default:
			emitted = append(emitted, c)
		}
	}
	if len(emitted) == 0 {
		return
	}
	g.printf("const (\n")
	for _, c := range emitted {
		g.printf("\t%s = %d\n", export(c.Name), c.Value)
		g.set.Constants = append(g.set.Constants, export(c.Name))
	}
	g.printf(")\n\n")
}

func (g *generator) emit(d decl) {
	switch d := d.(type) {
	case *record:
		info := g.types[tagKey(d.keyword(), d.tag)]
		switch {
		case info.denied:
			g.omit(d.keyword(), d.tag, "denylisted")
		case info.goName == "":
		case info.opaque:
			g.opaque(info.goName)
		default:
			g.printf("type %s = %s\n\n", info.goName, info.cName)
			g.set.Types = append(g.set.Types, info.goName)
		}
	case *enum:
		if d.tag != "" {
			info := g.types[tagKey("enum", d.tag)]
			if info.denied {
				g.omit("enum", d.tag, "denylisted")
				return
			}
			if info.goName != "" {
				g.printf("type %s = %s\n\n", info.goName, info.cName)
				g.set.Types = append(g.set.Types, info.goName)
			}
		}
		var names []string
		for _, c := range d.consts {
			switch {
			case g.deny.item(c.name):
				g.omit("constant", c.name, "denylisted")
			case !g.claim(export(c.name)):
				g.omit("constant", c.name, "name collision")
			default:
				names = append(names, c.name)
			}
		}
		if len(names) > 0 {
			g.printf("const (\n")
			for _, n := range names {
				g.printf("\t%s = C.%s\n", export(n), n)
				g.set.Constants = append(g.set.Constants, export(n))
			}
			g.printf(")\n\n")
		}
	case *typedef:
		if g.done[d.name] {
			return
		}
		g.done[d.name] = true
		info := g.types["name "+d.name]
		switch {
		case info.denied:
			g.omit("type", d.name, "denylisted")
		case info.goName == "" || g.ownedByTag(d, info):
		case info.opaque:
			g.opaque(info.goName)
		default:
			g.printf("type %s = %s\n\n", info.goName, info.cName)
			g.set.Types = append(g.set.Types, info.goName)
		}
	case *function:
		g.function(d)
	}
}

// ownedByTag reports whether the typedef shares its Go name with the tag it
// aliases, which was emitted already.
func (g *generator) ownedByTag(d *typedef, info *typeInfo) bool {
	under := g.underlying(d.typ)
	return under != nil && under.goName == info.goName
}

func (g *generator) opaque(goName string) {
	g.printf("// %s is opaque; its layout cannot be expressed in Go.\n", goName)
	g.printf("type %s struct{ _ [0]byte }\n\n", goName)
	g.set.Types = append(g.set.Types, goName)
}

func (g *generator) function(f *function) {
	switch {
	case g.deny.OmitsFunction(f.name):
		g.omit("function", f.name, "denylisted")
		return
	case f.variadic:
		g.omit("function", f.name, "variadic")
		return
	}
	goName := export(f.name)
	seen := map[string]bool{}
	needUnsafe := false
	var params, args []string
	for i, p := range f.params {
		gt, ct, op, ok := g.goType(p.typ)
		if !ok || op && p.typ.kind != kPointer {
			g.omit("function", f.name, "unsupported parameter type "+p.typ.String())
			return
		}
		name := paramName(p.name, i, seen)
		params = append(params, name+" "+gt)
		arg := name
		if op {
			arg = fmt.Sprintf("(%s)(unsafe.Pointer(%s))", ct, name)
		}
		needUnsafe = needUnsafe || op || strings.Contains(gt, "unsafe.")
		args = append(args, arg)
	}

	call := fmt.Sprintf("C.%s(%s)", f.name, strings.Join(args, ", "))
	result := ""
	if !(f.result.kind == kBuiltin && f.result.name == "void") {
		gt, _, op, ok := g.goType(f.result)
		if !ok || op && f.result.kind != kPointer {
			g.omit("function", f.name, "unsupported result type "+f.result.String())
			return
		}
		result = " " + gt
		if op {
			call = fmt.Sprintf("(%s)(unsafe.Pointer(%s))", gt, call)
		}
		needUnsafe = needUnsafe || op || strings.Contains(gt, "unsafe.")
		call = "return " + call
	}
	if !g.claim(goName) {
		g.omit("function", f.name, "name collision")
		return
	}
	g.unsafe = g.unsafe || needUnsafe
	g.printf("func %s(%s)%s {\n\t%s\n}\n\n", goName, strings.Join(params, ", "), result, call)
	g.set.Functions = append(g.set.Functions, goName)
}

func paramName(name string, i int, seen map[string]bool) string {
	switch {
	case name == "":
		name = fmt.Sprintf("p%d", i)
	case gotoken.IsKeyword(name), name == "C", name == "unsafe":
		name += "_"
	}
	if seen[name] {
		name = fmt.Sprintf("%s%d", name, i)
	}
	seen[name] = true
	return name
}

// source assembles the generated file around the emitted declarations.
func (g *generator) source(pkg string, headers, includePaths []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("// Code generated by rocksys bindgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("/*\n")
	if len(includePaths) > 0 {
		b.WriteString("#cgo CFLAGS:")
		for _, dir := range includePaths {
			b.WriteString(" -I" + filepath.ToSlash(dir))
		}
		b.WriteString("\n")
	}
	for _, h := range headers {
		fmt.Fprintf(&b, "#include %q\n", filepath.ToSlash(h))
	}
	b.WriteString("*/\nimport \"C\"\n\n")
	if g.unsafe {
		b.WriteString("import \"unsafe\"\n\n")
	}
	b.Write(g.body.Bytes())
	return format.Source(b.Bytes())
}
