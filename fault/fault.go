// Package fault defines the typed failures raised by the transformation engine.
//
// Every fatal condition carries a Kind from the error taxonomy and a
// human-readable cause. Degradable conditions are logged as warnings by the
// component that detects them and never reach this package.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindConfiguration marks an unusable option (unknown frame, bad interpolation method).
	KindConfiguration Kind = "CONFIGURATION"
	// KindSelection marks a selection that eliminates the whole input.
	KindSelection Kind = "SELECTION"
	// KindStructural marks a known limitation detected before any I/O.
	KindStructural Kind = "STRUCTURAL"
	// KindNumerical marks a numerical edge case that cannot be degraded.
	KindNumerical Kind = "NUMERICAL"
	// KindIO marks archive construction or access failures.
	KindIO Kind = "IO"
)

// Error is a typed failure with an operation name and optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix += " " + e.Op
	}

	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Msg, e.cause)
	}

	return fmt.Sprintf("[%s] %s", prefix, e.Msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a failure of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a failure of the given kind around cause.
// It returns nil when cause is nil.
func Wrap(kind Kind, op string, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}

	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// Configuration creates a configuration failure.
func Configuration(op, format string, args ...any) *Error {
	return New(KindConfiguration, op, format, args...)
}

// Selection creates a selection failure.
func Selection(op, format string, args ...any) *Error {
	return New(KindSelection, op, format, args...)
}

// Structural creates a structural-limitation failure.
func Structural(op, format string, args ...any) *Error {
	return New(KindStructural, op, format, args...)
}

// Numerical creates a numerical failure.
func Numerical(op, format string, args ...any) *Error {
	return New(KindNumerical, op, format, args...)
}

// IO wraps an archive I/O failure.
func IO(op string, cause error, format string, args ...any) error {
	return Wrap(KindIO, op, cause, format, args...)
}

// Is reports whether err carries a failure of the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}

	return false
}

// KindOf returns the kind of the first failure in err's chain, or "".
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	return ""
}
