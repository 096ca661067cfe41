// Package errs classifies the engine's failures into the four kinds the
// core distinguishes: configuration mistakes, malformed input, numeric
// dead ends, and resource exhaustion. Callers that need to branch on
// kind use errors.As against the typed wrappers below; everything else
// just propagates the error, formatted with github.com/pkg/errors so a
// stack trace survives up to the CLI's top-level handler.
package errs

import "github.com/pkg/errors"

// Kind distinguishes the four failure categories of the error handling
// design: configuration, input, numeric, and resource.
type Kind int

const (
	Configuration Kind = iota
	Input
	Numeric
	Resource
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Input:
		return "input"
	case Numeric:
		return "numeric"
	case Resource:
		return "resource"
	}
	return "unknown"
}

// Error is a kind-tagged error, wrapping an underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func newKind(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// Configurationf reports an invalid configuration value or a conflicting
// option combination.
func Configurationf(format string, args ...interface{}) error {
	return newKind(Configuration, format, args...)
}

// Inputf reports malformed input: a malformed tree, a duplicate leaf
// name, a leaf missing from the sequence set, a non-binary node.
func Inputf(format string, args ...interface{}) error {
	return newKind(Input, format, args...)
}

// Numericf reports a numeric dead end: lpEnd == -Inf after the guide
// envelope has been removed, or a seqCoord/topology invariant violation.
func Numericf(format string, args ...interface{}) error {
	return newKind(Numeric, format, args...)
}

// Resourcef reports that the full DP grid exceeds the memory budget and
// no sparse threshold fits either. Per §7 this is a warning the engine
// recovers from by falling back to the single-diagonal envelope, not a
// fatal error, but it is still surfaced to the caller's logger.
func Resourcef(format string, args ...interface{}) error {
	return newKind(Resource, format, args...)
}

// Wrap annotates err with msg, preserving pkg/errors' stack trace
// capture, the way the rest of the pack wraps I/O/config errors before
// they reach the CLI's top-level handler.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == k
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
