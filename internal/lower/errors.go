package lower

import (
	"errors"
	"fmt"

	"github.com/roach88/nlopt/internal/expr"
)

// ErrorKind categorizes build failures.
type ErrorKind string

const (
	KindUnknownName      ErrorKind = "unknown_name"
	KindBadKey           ErrorKind = "bad_key"
	KindUnsupportedShape ErrorKind = "unsupported_shape"
	KindEvalError        ErrorKind = "eval_error"
	KindNonlinear        ErrorKind = "nonlinear"
	KindSyntax           ErrorKind = "syntax"
	KindSolver           ErrorKind = "solver"
)

// BuildError reports which IR component failed to lower and why.
type BuildError struct {
	Kind      ErrorKind
	Component string
	Err       error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a BuildError of the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind ErrorKind) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// IsBuildError reports whether err came from Build.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

func buildErrorf(kind ErrorKind, component, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Component: component, Err: fmt.Errorf(format, args...)}
}

// exprError maps an interpreter error onto a build error kind.
func exprError(component string, err error) *BuildError {
	kind := KindEvalError
	if k, ok := expr.KindOf(err); ok {
		switch k {
		case expr.KindSyntax:
			kind = KindSyntax
		case expr.KindName:
			kind = KindUnknownName
		case expr.KindKey:
			kind = KindBadKey
		case expr.KindNonlinear:
			kind = KindNonlinear
		}
	}
	return &BuildError{Kind: kind, Component: component, Err: err}
}
