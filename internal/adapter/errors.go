package adapter

import (
	"errors"
	"fmt"
)

// ErrorKind names the adapter step that failed.
type ErrorKind string

const (
	KindBuildPrompts ErrorKind = "build_prompts"
	KindLLMCall      ErrorKind = "llm_call"
	KindJSONExtract  ErrorKind = "json_extract"
	KindIRParse      ErrorKind = "ir_parse"
	KindSelfCheck    ErrorKind = "self_check"
)

// Error is a failure of one adapter step.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
