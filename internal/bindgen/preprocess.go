package bindgen

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/coolyjg/rust-rocksdb-spdk/internal/cc"
)

type macro struct {
	name     string
	function bool
	body     []token
	file     string
}

// Constant is an object-like macro whose body is an integer constant.
type Constant struct {
	Name  string
	Value int64
}

type cond struct {
	parent bool // enclosing region active
	active bool
	taken  bool // some branch of the group was selected
}

// preprocessor expands a header and everything it includes that resolves
// against its own directory or the include paths. Headers that do not
// resolve, usually system headers, are skipped.
type preprocessor struct {
	includePaths []string

	macros  map[string]*macro
	order   []string // object-like macro definitions, in order
	visited map[string]bool
	out     []token
}

func newPreprocessor(includePaths []string, defines []cc.Define) *preprocessor {
	pp := &preprocessor{
		includePaths: includePaths,
		macros:       map[string]*macro{},
		visited:      map[string]bool{},
	}
	pp.define("__STDC__", "1", "<builtin>")
	for _, d := range defines {
		v := d.Value
		if v == "" {
			v = "1"
		}
		pp.define(d.Name, v, "<builtin>")
	}
	return pp
}

func (pp *preprocessor) define(name, body, file string) {
	pp.macros[name] = &macro{name: name, body: lex(body), file: file}
}

// File preprocesses path and appends its declaration tokens.
func (pp *preprocessor) File(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if pp.visited[abs] {
		return nil
	}
	pp.visited[abs] = true
	data, err := os.ReadFile(abs)
	if err != nil {
		return err
	}
	log.Debugf("bindgen: reading %s", abs)

	var stack []cond
	active := func() bool { return len(stack) == 0 || stack[len(stack)-1].active }
	for _, line := range strings.Split(clean(string(data)), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if active() {
				pp.out = append(pp.out, pp.expand(lex(line), nil)...)
			}
			continue
		}
		directive, rest := splitDirective(trimmed[1:])
		switch directive {
		case "if", "ifdef", "ifndef":
			c := cond{parent: active()}
			if c.parent {
				switch directive {
				case "if":
					c.active = pp.condition(rest)
				case "ifdef":
					c.active = pp.macros[firstWord(rest)] != nil
				default:
					c.active = pp.macros[firstWord(rest)] == nil
				}
				c.taken = c.active
			}
			stack = append(stack, c)
		case "elif", "else":
			if len(stack) == 0 {
				return fmt.Errorf("%s: #%s without #if", abs, directive)
			}
			c := &stack[len(stack)-1]
			switch {
			case !c.parent || c.taken:
				c.active = false
			case directive == "else":
				c.active = true
			default:
				c.active = pp.condition(rest)
			}
			c.taken = c.taken || c.active
		case "endif":
			if len(stack) == 0 {
				return fmt.Errorf("%s: #endif without #if", abs)
			}
			stack = stack[:len(stack)-1]
		case "define":
			if active() {
				pp.defineLine(rest, abs)
			}
		case "undef":
			if active() {
				delete(pp.macros, firstWord(rest))
			}
		case "include", "include_next":
			if active() {
				if err := pp.include(rest, filepath.Dir(abs)); err != nil {
					return err
				}
			}
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("%s: unterminated #if", abs)
	}
	return nil
}

func splitDirective(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func firstWord(s string) string {
	name, _ := splitDirective(s)
	return name
}

func (pp *preprocessor) defineLine(rest, file string) {
	name, _ := splitDirective(rest)
	if name == "" {
		return
	}
	body := rest[len(name):]
	m := &macro{name: name, file: file}
	if strings.HasPrefix(body, "(") {
		m.function = true
		if end := strings.IndexByte(body, ')'); end >= 0 {
			body = body[end+1:]
		}
	} else {
		pp.order = append(pp.order, name)
	}
	m.body = lex(body)
	pp.macros[name] = m
}

func (pp *preprocessor) include(rest, fromDir string) error {
	spec := rest
	if !strings.HasPrefix(spec, "\"") && !strings.HasPrefix(spec, "<") {
		var b strings.Builder
		for _, t := range pp.expand(lex(rest), nil) {
			b.WriteString(t.text)
		}
		spec = b.String()
	}
	if len(spec) < 2 {
		return nil
	}
	var name string
	quotedInclude := spec[0] == '"'
	if quotedInclude {
		name = strings.Trim(spec, "\"")
	} else {
		end := strings.IndexByte(spec, '>')
		if end < 0 {
			return nil
		}
		name = spec[1:end]
	}
	path := pp.resolve(name, quotedInclude, fromDir)
	if path == "" {
		log.Debugf("bindgen: skipping unresolved include %s", spec)
		return nil
	}
	return pp.File(path)
}

func (pp *preprocessor) resolve(name string, quoted bool, fromDir string) string {
	var dirs []string
	if quoted {
		dirs = append(dirs, fromDir)
	}
	dirs = append(dirs, pp.includePaths...)
	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// expand replaces object-like macros recursively. hide holds the macros
// being expanded, which are left alone.
func (pp *preprocessor) expand(toks []token, hide []string) []token {
	out := make([]token, 0, len(toks))
	for _, t := range toks {
		if t.kind != tokIdent || slices.Contains(hide, t.text) {
			out = append(out, t)
			continue
		}
		m := pp.macros[t.text]
		switch {
		case m == nil:
			out = append(out, t)
		case m.function:
			t.fnMacro = true
			out = append(out, t)
		default:
			out = append(out, pp.expand(m.body, append(hide, t.text))...)
		}
	}
	return out
}

var zero = token{kind: tokNumber, text: "0"}

// condition evaluates a #if or #elif expression. Malformed expressions are
// false.
func (pp *preprocessor) condition(expr string) bool {
	toks := lex(expr)
	var resolved []token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.kind == tokIdent && t.text == "defined":
			name := ""
			if i+1 < len(toks) && toks[i+1].is("(") && i+3 < len(toks) {
				name = toks[i+2].text
				i += 3
			} else if i+1 < len(toks) {
				name = toks[i+1].text
				i++
			}
			resolved = append(resolved, token{kind: tokNumber, text: fmt.Sprint(b2i(pp.macros[name] != nil))})
		case t.kind == tokIdent && strings.HasPrefix(t.text, "__has_"):
			i = skipParens(toks, i+1) - 1
			resolved = append(resolved, zero)
		default:
			resolved = append(resolved, t)
		}
	}
	resolved = dropCalls(pp.expand(resolved, nil), &zero)
	v, err := evalTokens(resolved, false)
	if err != nil {
		log.Debugf("bindgen: #if %s: %v", expr, err)
		return false
	}
	return v != 0
}

// skipParens returns the index after the balanced group starting at i, or i
// when toks[i] is not "(".
func skipParens(toks []token, i int) int {
	if i >= len(toks) || !toks[i].is("(") {
		return i
	}
	depth := 0
	for ; i < len(toks); i++ {
		switch {
		case toks[i].is("("):
			depth++
		case toks[i].is(")"):
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

// dropCalls removes function-like macro invocations, inserting repl in
// their place when it is non-nil.
func dropCalls(toks []token, repl *token) []token {
	out := make([]token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.fnMacro && i+1 < len(toks) && toks[i+1].is("(") {
			i = skipParens(toks, i+1) - 1
			if repl != nil {
				out = append(out, *repl)
			}
			continue
		}
		t.fnMacro = false
		out = append(out, t)
	}
	return out
}

// Tokens returns the declaration tokens read so far.
func (pp *preprocessor) Tokens() []token {
	return dropCalls(pp.out, nil)
}

// Constants returns the object-like macros that are still defined and
// evaluate to integers, in order of their last definition.
func (pp *preprocessor) Constants() []Constant {
	seen := map[string]bool{}
	var names []string
	for i := len(pp.order) - 1; i >= 0; i-- {
		n := pp.order[i]
		if seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	slices.Reverse(names)

	var out []Constant
	for _, n := range names {
		m := pp.macros[n]
		if m == nil || m.function || m.file == "<builtin>" {
			continue
		}
		body := dropCalls(pp.expand(m.body, []string{n}), nil)
		v, err := evalTokens(body, true)
		if err != nil {
			continue
		}
		out = append(out, Constant{Name: n, Value: v})
	}
	return out
}
