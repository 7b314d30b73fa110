package expr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies expression failures.
type ErrorKind string

const (
	KindSyntax    ErrorKind = "syntax"
	KindName      ErrorKind = "name"
	KindKey       ErrorKind = "key"
	KindType      ErrorKind = "type"
	KindNonlinear ErrorKind = "nonlinear"
	KindValue     ErrorKind = "value"
)

// Error is returned by Parse and Eval. Pos is a byte offset into the source.
type Error struct {
	Kind ErrorKind
	Msg  string
	Pos  int
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s error at offset %d: %s", e.Kind, e.Pos, e.Msg)
}

func errorf(kind ErrorKind, pos int, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// KindOf returns the kind of an expression error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is an expression error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
