package expr

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokKind int

const (
	tEOF tokKind = iota
	tName
	tNumber
	tString
	tOp
)

type token struct {
	kind tokKind
	text string // source text; for tString the decoded value
	pos  int
	num  float64
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "for": true,
	"if": true, "else": true, "True": true, "False": true, "None": true,
	"lambda": true, "import": true, "is": true,
}

var twoCharOps = []string{"**", "//", "<=", ">=", "==", "!="}

// lex splits src into tokens. It never panics on malformed input.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			return nil, errorf(KindSyntax, i, "invalid UTF-8")
		case unicode.IsSpace(r):
			i += size
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			toks = append(toks, token{kind: tName, text: src[start:i], pos: start})
		case isDigit(r) || (r == '.' && i+1 < len(src) && isDigit(rune(src[i+1]))):
			tok, next, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case r == '\'' || r == '"':
			tok, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		default:
			matched := false
			for _, op := range twoCharOps {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, token{kind: tOp, text: op, pos: i})
					i += len(op)
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			if strings.ContainsRune("+-*/%()[],<>.:={}", r) {
				toks = append(toks, token{kind: tOp, text: string(r), pos: i})
				i += size
				continue
			}
			return nil, errorf(KindSyntax, i, "unexpected character %q", r)
		}
	}
	toks = append(toks, token{kind: tEOF, pos: len(src)})
	return toks, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func lexNumber(src string, start int) (token, int, error) {
	i := start
	for i < len(src) && isDigit(rune(src[i])) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(rune(src[i])) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(rune(src[j])) {
			for j < len(src) && isDigit(rune(src[j])) {
				j++
			}
			i = j
		}
	}
	text := src[start:i]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, 0, errorf(KindSyntax, start, "invalid number %q", text)
	}
	if i < len(src) {
		if r, _ := utf8.DecodeRuneInString(src[i:]); r == '_' || unicode.IsLetter(r) {
			return token{}, 0, errorf(KindSyntax, start, "invalid number %q", src[start:i+1])
		}
	}
	return token{kind: tNumber, text: text, pos: start, num: f}, i, nil
}

func lexString(src string, start int) (token, int, error) {
	quote := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			return token{kind: tString, text: b.String(), pos: start}, i + 1, nil
		case c == '\\' && i+1 < len(src):
			switch esc := src[i+1]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '\'', '"':
				b.WriteByte(esc)
			default:
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
			i += 2
		case c == '\n':
			return token{}, 0, errorf(KindSyntax, start, "unterminated string literal")
		default:
			b.WriteByte(c)
			i++
		}
	}
	return token{}, 0, errorf(KindSyntax, start, "unterminated string literal")
}
