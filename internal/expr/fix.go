package expr

import "strings"

// FixSumCalls repairs two common typos in sum and quicksum calls and
// reports whether src changed:
//
//	sum(e, for i in I)    becomes  sum(e for i in I)
//	quicksum(a, b, c)     becomes  (a) + (b) + (c)
//
// It works on source text so it also applies to expressions that do not
// parse. Nested calls are repaired innermost first.
func FixSumCalls(src string) (string, bool) {
	out := fixCalls(src, true)
	return out, out != src
}

func fixCalls(src string, top bool) string {
	var b strings.Builder
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			j := skipQuoted(src, i)
			b.WriteString(src[i:j])
			i = j
			continue
		case isWordByte(c):
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			word := src[i:j]
			k := j
			for k < len(src) && src[k] == ' ' {
				k++
			}
			if (word == "sum" || word == "quicksum") && k < len(src) && src[k] == '(' {
				end := matchParen(src, k)
				if end < 0 {
					b.WriteString(src[i:])
					return b.String()
				}
				inner := fixCalls(src[k+1:end], false)
				whole := top && strings.TrimSpace(src[:i]) == "" && strings.TrimSpace(src[end+1:]) == ""
				b.WriteString(rewriteSumCall(word, inner, whole))
				i = end + 1
				continue
			}
			b.WriteString(word)
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func rewriteSumCall(name, inner string, whole bool) string {
	var args []string
	for i, part := range splitTopLevel(inner) {
		if i > 0 && startsWithWord(strings.TrimLeft(part, " \t"), "for") {
			// Pattern A: a generator clause separated from its element.
			last := len(args) - 1
			args[last] = strings.TrimRight(args[last], " \t") + " " + strings.TrimSpace(part)
			continue
		}
		args = append(args, part)
	}
	for _, a := range args {
		if hasTopLevelFor(a) {
			return name + "(" + strings.Join(args, ",") + ")"
		}
	}

	var terms []string
	for _, a := range args {
		if t := strings.TrimSpace(a); t != "" {
			terms = append(terms, t)
		}
	}
	// Pattern B: a list of terms passed where an iterable belongs. sum
	// accepts an optional start value, so sum([...], s) stays.
	expand := len(terms) >= 2 &&
		(name == "quicksum" || len(terms) >= 3 || !looksIterable(terms[0]))
	if !expand {
		return name + "(" + strings.Join(args, ",") + ")"
	}
	for i, t := range terms {
		terms[i] = "(" + t + ")"
	}
	out := strings.Join(terms, " + ")
	if whole {
		return out
	}
	return "(" + out + ")"
}

func looksIterable(arg string) bool {
	return strings.HasPrefix(arg, "[") ||
		strings.HasPrefix(arg, "range(") ||
		strings.HasPrefix(arg, "enumerate(")
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func startsWithWord(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	return len(s) == len(word) || !isWordByte(s[len(word)])
}

// skipQuoted returns the index just past the string literal starting at i.
func skipQuoted(src string, i int) int {
	q := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j + 1
		}
	}
	return len(src)
}

// matchParen returns the index of the parenthesis closing the one at open,
// or -1.
func matchParen(src string, open int) int {
	depth := 0
	for i := open; i < len(src); i++ {
		switch c := src[i]; c {
		case '\'', '"':
			i = skipQuoted(src, i) - 1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				if c != ')' {
					return -1
				}
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s at commas outside brackets and strings.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			i = skipQuoted(s, i) - 1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func hasTopLevelFor(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"':
			i = skipQuoted(s, i) - 1
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case depth == 0 && isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			if s[i:j] == "for" {
				return true
			}
			i = j - 1
		}
	}
	return false
}
