package ir

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// placeholderNamespace scopes problem IDs derived from question text.
var placeholderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/roach88/nlopt/problem"))

// StablePlaceholderID derives a deterministic problem_id from the question
// text. Whitespace runs and Unicode normalization differences do not change
// the result.
func StablePlaceholderID(question string) string {
	normalized := strings.Join(strings.Fields(norm.NFC.String(question)), " ")
	return "auto-" + uuid.NewSHA1(placeholderNamespace, []byte(normalized)).String()
}
