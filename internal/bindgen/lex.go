package bindgen

import "strings"

type tokKind int

const (
	tokIdent tokKind = iota + 1
	tokNumber
	tokString
	tokChar
	tokPunct
)

type token struct {
	kind tokKind
	text string

	// fnMacro marks an identifier naming a function-like macro at the point
	// it was read. Invocations are dropped once the whole stream is known.
	fnMacro bool
}

func (t token) is(text string) bool {
	return t.kind != tokString && t.kind != tokChar && t.text == text
}

var puncts3 = []string{"...", "<<=", ">>="}

var puncts2 = []string{
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "##", "::",
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// lex splits comment-free C text into tokens.
func lex(s string) []token {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j]})
			i = j
		case isDigit(c) || c == '.' && i+1 < len(s) && isDigit(s[i+1]):
			j := i + 1
			for j < len(s) {
				d := s[j]
				if (d == '+' || d == '-') && strings.ContainsRune("eEpP", rune(s[j-1])) {
					j++
					continue
				}
				if !isIdentChar(d) && d != '.' {
					break
				}
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j]})
			i = j
		case c == '"' || c == '\'':
			j := quoted(s, i)
			kind := tokString
			if c == '\'' {
				kind = tokChar
			}
			toks = append(toks, token{kind: kind, text: s[i:j]})
			i = j
		default:
			n := 1
			for _, p := range puncts3 {
				if strings.HasPrefix(s[i:], p) {
					n = 3
					break
				}
			}
			if n == 1 {
				for _, p := range puncts2 {
					if strings.HasPrefix(s[i:], p) {
						n = 2
						break
					}
				}
			}
			toks = append(toks, token{kind: tokPunct, text: s[i : i+n]})
			i += n
		}
	}
	return toks
}

// quoted returns the index just past the string or char literal at s[i].
func quoted(s string, i int) int {
	q := s[i]
	j := i + 1
	for j < len(s) && s[j] != q && s[j] != '\n' {
		if s[j] == '\\' {
			j++
		}
		j++
	}
	if j < len(s) && s[j] == q {
		j++
	}
	return min(j, len(s))
}

// clean joins continuation lines and replaces comments by a single space,
// leaving string and char literals untouched.
func clean(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\\\n", "")
	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); {
		switch {
		case src[i] == '"' || src[i] == '\'':
			j := quoted(src, i)
			b.WriteString(src[i:j])
			i = j
		case strings.HasPrefix(src[i:], "//"):
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				i = len(src)
			} else {
				i += end + 4
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(src[i])
			i++
		}
	}
	return b.String()
}
