package bindgen

import "strings"

type kind int

const (
	kBuiltin kind = iota + 1 // name is the canonical C spelling
	kName                    // typedef name
	kRecord
	kEnum
	kPointer
	kArray
	kFunc
)

// ctype is a C type as written in a declaration.
type ctype struct {
	kind     kind
	name     string
	rec      *record
	elem     *ctype // pointer/array element, function result
	params   []param
	variadic bool
}

type param struct {
	name string
	typ  *ctype
}

type field struct {
	name string
	typ  *ctype
	bits bool
}

type record struct {
	tag      string
	union    bool
	complete bool
	packed   bool
	bitfield bool
	hasUnion bool // an anonymous or by-value union member
	fields   []field
}

func (r *record) keyword() string {
	if r.union {
		return "union"
	}
	return "struct"
}

// inexpressible reports whether the record layout cannot be reproduced by a
// plain Go struct.
func (r *record) inexpressible() bool {
	return r.union || r.packed || r.bitfield || r.hasUnion
}

type enumConst struct{ name string }

type enum struct {
	tag    string
	consts []enumConst
}

type typedef struct {
	name string
	typ  *ctype
}

type function struct {
	name     string
	result   *ctype
	params   []param
	variadic bool
}

// decl is one of *record, *enum, *typedef or *function.
type decl any

type specs struct {
	typ      *ctype
	typedef  bool
	static   bool
	words    []string
	explicit bool // a builtin or tag type was named
}

// parser reads declarations from preprocessed tokens. Anything it does not
// recognize is skipped up to the next top-level ';'.
type parser struct {
	toks []token
	pos  int

	decls   []decl
	records map[string]*record
}

func parse(toks []token) []decl {
	p := &parser{toks: toks, records: map[string]*record{}}
	for p.pos < len(p.toks) {
		start := p.pos
		switch {
		case p.accept(";"), p.accept("}"):
		case p.isIdent("extern") && p.peekAt(1).kind == tokString:
			p.pos += 2
			p.accept("{")
		case p.isIdent("_Static_assert", "static_assert"):
			p.skipStatement()
		default:
			p.declaration()
		}
		if p.pos == start {
			p.pos++
		}
	}
	return p.decls
}

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return token{}
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) is(text string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == text
}

func (p *parser) isIdent(names ...string) bool {
	t := p.peek()
	if t.kind != tokIdent {
		return false
	}
	for _, n := range names {
		if t.text == n {
			return true
		}
	}
	return false
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.pos++
		return true
	}
	return false
}

// skipGroup skips a balanced (), [] or {} group starting at the current
// token. An unclosed () or [] group ends before the next ';'.
func (p *parser) skipGroup() {
	open := p.peek().text
	closer := map[string]string{"(": ")", "[": "]", "{": "}"}[open]
	if closer == "" {
		return
	}
	depth := 0
	for p.pos < len(p.toks) {
		if open != "{" && p.is(";") {
			return
		}
		t := p.next()
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// skipStatement skips to just past the next ';' outside any group. An
// unmatched '}' ends the statement without being consumed.
func (p *parser) skipStatement() {
	for p.pos < len(p.toks) {
		switch {
		case p.accept(";"):
			return
		case p.is("}"):
			return
		case p.is("("), p.is("["), p.is("{"):
			p.skipGroup()
		default:
			p.pos++
		}
	}
}

// skipTo skips to one of the given punctuators outside any group.
func (p *parser) skipTo(stops ...string) {
	for p.pos < len(p.toks) {
		for _, s := range stops {
			if p.is(s) {
				return
			}
		}
		if p.is("(") || p.is("[") || p.is("{") {
			p.skipGroup()
			continue
		}
		p.pos++
	}
}

// attributes skips GNU and MSVC attribute syntax and reports whether one of
// them requested packing.
func (p *parser) attributes() (packed bool) {
	for {
		switch {
		case p.isIdent("__attribute__", "__attribute"):
			p.pos++
			start := p.pos
			p.skipGroup()
			for _, t := range p.toks[start:p.pos] {
				if t.text == "packed" || t.text == "__packed__" {
					packed = true
				}
			}
		case p.isIdent("__declspec", "__asm__", "__asm", "asm", "_Alignas", "alignas"):
			p.pos++
			p.skipGroup()
		case p.isIdent("__extension__", "_Noreturn", "__inline", "__inline__", "inline", "__restrict", "__restrict__", "restrict"):
			p.pos++
		default:
			return packed
		}
	}
}

var builtinWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "bool": true, "__int128": true, "_Complex": true,
}

var qualifierWords = map[string]bool{
	"const": true, "volatile": true, "register": true, "auto": true,
	"extern": true, "_Atomic": true, "__const": true, "__volatile__": true,
	"_Thread_local": true, "__thread": true,
}

func (p *parser) declSpecs() (specs, bool) {
	var s specs
	for p.pos < len(p.toks) {
		p.attributes()
		t := p.peek()
		if t.kind != tokIdent {
			break
		}
		switch {
		case t.text == "typedef":
			s.typedef = true
			p.pos++
		case t.text == "static":
			s.static = true
			p.pos++
		case qualifierWords[t.text]:
			p.pos++
		case builtinWords[t.text]:
			if !s.explicit {
				s.typ = nil
			}
			s.explicit = true
			s.words = append(s.words, t.text)
			p.pos++
		case t.text == "struct" || t.text == "union" || t.text == "enum":
			if s.explicit {
				return p.finishSpecs(s)
			}
			s.explicit = true
			s.typ = p.tagged()
		case s.typ == nil && !s.explicit:
			s.typ = &ctype{kind: kName, name: t.text}
			p.pos++
		default:
			return p.finishSpecs(s)
		}
	}
	return p.finishSpecs(s)
}

func (p *parser) finishSpecs(s specs) (specs, bool) {
	if len(s.words) > 0 {
		s.typ = &ctype{kind: kBuiltin, name: canonical(s.words)}
	}
	return s, s.typ != nil
}

// canonical spells a builtin type the way cgo names it.
func canonical(words []string) string {
	count := map[string]int{}
	for _, w := range words {
		count[w]++
	}
	unsigned := count["unsigned"] > 0
	prefix := ""
	if unsigned {
		prefix = "unsigned "
	}
	switch {
	case count["void"] > 0:
		return "void"
	case count["_Bool"] > 0 || count["bool"] > 0:
		return "_Bool"
	case count["__int128"] > 0:
		return prefix + "__int128"
	case count["_Complex"] > 0:
		return "_Complex"
	case count["float"] > 0:
		return "float"
	case count["double"] > 0:
		if count["long"] > 0 {
			return "long double"
		}
		return "double"
	case count["char"] > 0:
		switch {
		case unsigned:
			return "unsigned char"
		case count["signed"] > 0:
			return "signed char"
		}
		return "char"
	case count["short"] > 0:
		return prefix + "short"
	case count["long"] == 1:
		return prefix + "long"
	case count["long"] >= 2:
		return prefix + "long long"
	}
	return prefix + "int"
}

// tagged parses a struct, union or enum specifier, with or without a body.
func (p *parser) tagged() *ctype {
	kw := p.next().text
	packed := p.attributes()
	tag := ""
	if p.peek().kind == tokIdent {
		tag = p.next().text
	}
	packed = p.attributes() || packed

	if kw == "enum" {
		if p.is("{") {
			p.enumBody(tag)
		}
		return &ctype{kind: kEnum, name: tag}
	}

	r := p.record(kw == "union", tag)
	if p.is("{") {
		p.recordBody(r)
		r.complete = true
		packed = p.attributes() || packed
	}
	r.packed = r.packed || packed
	return &ctype{kind: kRecord, name: tag, rec: r}
}

func (p *parser) record(union bool, tag string) *record {
	if tag == "" {
		return &record{union: union}
	}
	key := "struct " + tag
	if union {
		key = "union " + tag
	}
	if r, ok := p.records[key]; ok {
		return r
	}
	r := &record{tag: tag, union: union}
	p.records[key] = r
	p.decls = append(p.decls, r)
	return r
}

func (p *parser) recordBody(r *record) {
	p.pos++ // {
	for p.pos < len(p.toks) && !p.accept("}") {
		if p.accept(";") {
			continue
		}
		s, ok := p.declSpecs()
		if !ok {
			p.skipTo(";", "}")
			continue
		}
		if s.typ.kind == kRecord && s.typ.rec.union && p.is(";") {
			r.hasUnion = true
		}
		for !p.is(";") && !p.is("}") && p.pos < len(p.toks) {
			name, t := p.declarator(s.typ)
			f := field{name: name, typ: t}
			if p.accept(":") {
				f.bits = true
				r.bitfield = true
				p.skipTo(",", ";", "}")
			}
			if t.kind == kRecord && t.rec.union {
				r.hasUnion = true
			}
			r.packed = p.attributes() || r.packed
			r.fields = append(r.fields, f)
			if !p.accept(",") {
				break
			}
		}
		if !p.accept(";") {
			p.skipTo(";", "}")
			p.accept(";")
		}
	}
}

func (p *parser) enumBody(tag string) {
	e := &enum{tag: tag}
	p.pos++ // {
	for p.pos < len(p.toks) && !p.accept("}") {
		t := p.next()
		if t.kind == tokIdent {
			e.consts = append(e.consts, enumConst{name: t.text})
		}
		p.attributes()
		if p.accept("=") {
			p.skipTo(",", "}")
		}
		p.accept(",")
	}
	p.decls = append(p.decls, e)
}

// declarator parses a possibly abstract declarator applied to base and
// returns the declared name, empty when abstract.
func (p *parser) declarator(base *ctype) (string, *ctype) {
	for {
		p.attributes()
		if !p.accept("*") && !p.accept("^") {
			break
		}
		for p.isIdent("const", "volatile", "restrict", "__restrict", "__restrict__", "_Nullable", "_Nonnull", "__const") {
			p.pos++
		}
		base = &ctype{kind: kPointer, elem: base}
	}
	p.attributes()
	if p.is("(") && (p.peekAt(1).is("*") || p.peekAt(1).is("^")) {
		p.pos++
		hole := &ctype{}
		name, inner := p.declarator(hole)
		p.accept(")")
		*hole = *p.suffixes(base)
		return name, inner
	}
	name := ""
	if t := p.peek(); t.kind == tokIdent && !qualifierWords[t.text] {
		name = p.next().text
	}
	return name, p.suffixes(base)
}

func (p *parser) suffixes(base *ctype) *ctype {
	var wraps []func(*ctype) *ctype
	for {
		p.attributes()
		switch {
		case p.is("["):
			p.skipGroup()
			wraps = append(wraps, func(t *ctype) *ctype { return &ctype{kind: kArray, elem: t} })
			continue
		case p.is("("):
			params, variadic := p.params()
			wraps = append(wraps, func(t *ctype) *ctype {
				return &ctype{kind: kFunc, elem: t, params: params, variadic: variadic}
			})
			continue
		}
		break
	}
	t := base
	for i := len(wraps) - 1; i >= 0; i-- {
		t = wraps[i](t)
	}
	return t
}

func (p *parser) params() ([]param, bool) {
	p.pos++ // (
	if p.accept(")") {
		return nil, false
	}
	if p.isIdent("void") && p.peekAt(1).is(")") {
		p.pos += 2
		return nil, false
	}
	var params []param
	for p.pos < len(p.toks) {
		if p.accept("...") {
			p.skipTo(")")
			p.accept(")")
			return params, true
		}
		s, ok := p.declSpecs()
		if !ok {
			p.skipTo(")")
			p.accept(")")
			return params, false
		}
		name, t := p.declarator(s.typ)
		switch t.kind {
		case kArray:
			t = &ctype{kind: kPointer, elem: t.elem}
		case kFunc:
			t = &ctype{kind: kPointer, elem: t}
		}
		params = append(params, param{name: name, typ: t})
		if p.accept(",") {
			continue
		}
		p.skipTo(")")
		p.accept(")")
		break
	}
	return params, false
}

func (p *parser) declaration() {
	s, ok := p.declSpecs()
	if !ok {
		p.skipStatement()
		return
	}
	if p.accept(";") {
		return
	}
	for p.pos < len(p.toks) {
		name, t := p.declarator(s.typ)
		p.attributes()
		if name == "" {
			p.skipStatement()
			return
		}
		switch {
		case s.typedef:
			p.decls = append(p.decls, &typedef{name: name, typ: t})
		case t.kind == kFunc && p.is("{"):
			// Inline definitions are not part of the ABI.
			p.skipGroup()
			return
		case t.kind == kFunc && !s.static:
			p.decls = append(p.decls, &function{name: name, result: t.elem, params: t.params, variadic: t.variadic})
		}
		if p.accept("=") {
			p.skipTo(",", ";")
		}
		if p.accept(",") {
			continue
		}
		if !p.accept(";") {
			p.skipStatement()
		}
		return
	}
}

// String renders t in C syntax, without declarator names.
func (t *ctype) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.kind {
	case kBuiltin, kName:
		return t.name
	case kRecord:
		return t.rec.keyword() + " " + t.name
	case kEnum:
		return "enum " + t.name
	case kPointer:
		return t.elem.String() + "*"
	case kArray:
		return t.elem.String() + "[]"
	case kFunc:
		var ps []string
		for _, p := range t.params {
			ps = append(ps, p.typ.String())
		}
		if t.variadic {
			ps = append(ps, "...")
		}
		return t.elem.String() + "(" + strings.Join(ps, ", ") + ")"
	}
	return "?"
}
