package adapter

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a reply holds no JSON object.
var ErrNoJSON = errors.New("no JSON object found in reply")

var fence = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\r?\n?(.*?)```")

// ExtractJSON returns the first JSON object of an LLM reply, raw and
// decoded. Fenced code blocks are searched first, then the whole reply;
// surrounding prose and language tags are ignored.
func ExtractJSON(reply string) ([]byte, map[string]any, error) {
	var candidates []string
	for _, m := range fence.FindAllStringSubmatch(reply, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, reply)

	for _, text := range candidates {
		for start := strings.IndexByte(text, '{'); start >= 0; {
			if end := matchBrace(text, start); end > 0 {
				raw := []byte(text[start : end+1])
				var obj map[string]any
				if err := json.Unmarshal(raw, &obj); err == nil {
					return raw, obj, nil
				}
			}
			next := strings.IndexByte(text[start+1:], '{')
			if next < 0 {
				break
			}
			start += next + 1
		}
	}
	return nil, nil, &Error{Kind: KindJSONExtract, Err: ErrNoJSON}
}

// matchBrace returns the index of the brace closing the one at open,
// skipping JSON strings, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
