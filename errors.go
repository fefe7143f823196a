package coclust

// errors.go defines the error kinds of the coclustering engine and the Wrapper
// helper used throughout the package to attach a kind and a message to an error.

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds, per the five categories the engine distinguishes. Use
// errors.Is(err, ErrSpec) (etc.) to test the kind of a returned error.
var (
	// ErrSpec covers schema errors: invalid schema, unknown attribute, a
	// non-numeric frequency variable, fewer than 2 coclustering variables.
	ErrSpec = errors.New("specification error")

	// ErrIO covers dictionary/data/report file errors.
	ErrIO = errors.New("I/O error")

	// ErrDataRow covers a single malformed row: bad field count, bad weight.
	// Callers skip the row and continue; it never aborts a run.
	ErrDataRow = errors.New("data row error")

	// ErrResource covers memory-budget and interruption conditions.
	ErrResource = errors.New("resource error")

	// ErrInternal covers cost-model invariant violations (fatal in debug
	// builds, recovered from in release builds).
	ErrInternal = errors.New("internal invariant violation")
)

// Wrapper attaches msg to kind, producing an error whose Cause() is kind so
// errors.Is(err, kind) still succeeds after wrapping.
func Wrapper(kind error, msg string) error {
	return errors.Wrap(kind, msg)
}

// Wrapf is Wrapper with fmt.Sprintf-style formatting.
func Wrapf(kind error, format string, args ...any) error {
	return Wrapper(kind, fmt.Sprintf(format, args...))
}
