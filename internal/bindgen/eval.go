package bindgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNotConstant = errors.New("not an integer constant expression")

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

// evaluator computes integer constant expressions over already expanded
// tokens. With strict unset, leftover identifiers evaluate to 0 as they do
// in #if; otherwise they make the expression non-constant.
type evaluator struct {
	toks   []token
	pos    int
	strict bool
	err    error
}

func evalTokens(toks []token, strict bool) (int64, error) {
	if len(toks) == 0 {
		return 0, errNotConstant
	}
	e := &evaluator{toks: toks, strict: strict}
	v := e.ternary()
	if e.err == nil && e.pos < len(e.toks) {
		e.fail("unexpected %q", e.toks[e.pos].text)
	}
	return v, e.err
}

func (e *evaluator) fail(format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: "+format, append([]any{errNotConstant}, args...)...)
	}
}

func (e *evaluator) peek() token {
	if e.pos < len(e.toks) {
		return e.toks[e.pos]
	}
	return token{}
}

func (e *evaluator) accept(p string) bool {
	if t := e.peek(); t.kind == tokPunct && t.text == p {
		e.pos++
		return true
	}
	return false
}

func (e *evaluator) ternary() int64 {
	cond := e.binary(1)
	if !e.accept("?") {
		return cond
	}
	a := e.ternary()
	if !e.accept(":") {
		e.fail("missing ':'")
		return 0
	}
	b := e.ternary()
	if cond != 0 {
		return a
	}
	return b
}

func (e *evaluator) binary(minPrec int) int64 {
	lhs := e.unary()
	for e.err == nil {
		t := e.peek()
		prec, ok := binaryPrec[t.text]
		if t.kind != tokPunct || !ok || prec < minPrec {
			return lhs
		}
		e.pos++
		rhs := e.binary(prec + 1)
		lhs = e.apply(t.text, lhs, rhs)
	}
	return lhs
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (e *evaluator) apply(op string, a, b int64) int64 {
	switch op {
	case "||":
		return b2i(a != 0 || b != 0)
	case "&&":
		return b2i(a != 0 && b != 0)
	case "|":
		return a | b
	case "^":
		return a ^ b
	case "&":
		return a & b
	case "==":
		return b2i(a == b)
	case "!=":
		return b2i(a != b)
	case "<":
		return b2i(a < b)
	case ">":
		return b2i(a > b)
	case "<=":
		return b2i(a <= b)
	case ">=":
		return b2i(a >= b)
	case "<<":
		return a << uint64(b&63)
	case ">>":
		return a >> uint64(b&63)
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/", "%":
		if b == 0 {
			e.fail("division by zero")
			return 0
		}
		if op == "/" {
			return a / b
		}
		return a % b
	}
	e.fail("unknown operator %q", op)
	return 0
}

func (e *evaluator) unary() int64 {
	t := e.peek()
	if t.kind == 0 {
		e.fail("unexpected end of expression")
		return 0
	}
	e.pos++
	switch t.kind {
	case tokNumber:
		v, err := parseInt(t.text)
		if err != nil {
			e.fail("%v", err)
		}
		return v
	case tokChar:
		return charValue(t.text)
	case tokIdent:
		if e.strict {
			e.fail("identifier %s", t.text)
		}
		return 0
	case tokPunct:
		switch t.text {
		case "(":
			v := e.ternary()
			if !e.accept(")") {
				e.fail("missing ')'")
			}
			return v
		case "!":
			return b2i(e.unary() == 0)
		case "-":
			return -e.unary()
		case "+":
			return e.unary()
		case "~":
			return ^e.unary()
		}
	}
	e.fail("unexpected %q", t.text)
	return 0
}

func parseInt(s string) (int64, error) {
	s = strings.TrimRight(s, "uUlL")
	if s == "" {
		return 0, errNotConstant
	}
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return v, nil
	}
	u, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad integer literal %q", s)
	}
	return int64(u), nil
}

func charValue(lit string) int64 {
	body := strings.TrimSuffix(strings.TrimPrefix(lit, "'"), "'")
	if v, _, _, err := strconv.UnquoteChar(body, '\''); err == nil {
		return int64(v)
	}
	return 0
}
