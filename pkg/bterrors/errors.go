// Package bterrors defines the typed error kinds surfaced at every package
// boundary of the engine (spec.md §7). The teacher repo this module is
// grounded on reports every failure as a bare errors.New/fmt.Errorf value;
// nothing in the retrieval pack wires a third-party typed-error library
// (no pkg/errors, no go-multierror) so this stays on the standard library's
// own error-wrapping idiom (a concrete type implementing error, unwrapped
// through errors.Is/errors.As) rather than inventing a dependency.
package bterrors

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// FormatError: invalid magic, page size/order mismatch, truncated file.
	FormatError Kind = iota
	// InvalidArgument: order < 4, negative id, empty path.
	InvalidArgument
	// InvalidState: disposed tree used, page offset outside file.
	InvalidState
	// StructuralCorruption: cycle, ghost, key-ordering violation, underflow.
	StructuralCorruption
	// IOError: propagated from the underlying file system.
	IOError
)

func (k Kind) String() string {
	switch k {
	case FormatError:
		return "format error"
	case InvalidArgument:
		return "invalid argument"
	case InvalidState:
		return "invalid state"
	case StructuralCorruption:
		return "structural corruption"
	case IOError:
		return "io error"
	default:
		return "unknown error"
	}
}

// Error is the typed error returned at package boundaries.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "pager.Open"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error of the given kind for op, wrapping cause (which
// may be nil).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err is a bterrors.Error of the given kind, looking
// through wrapping.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
