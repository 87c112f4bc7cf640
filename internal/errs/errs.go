// Package errs defines the machine readable error kinds reported to callers
package errs

import (
	"errors"
	"fmt"
)

// Kind of a failure
type Kind string

const (
	// Transport network, timeout or empty body failures
	Transport Kind = "transport"
	// Authority certificate exchange rejected or incomplete
	Authority Kind = "authority"
	// Build subprocess exited non-zero
	Build Kind = "build"
	// Layout expected build artifact is missing
	Layout Kind = "layout"
	// Overlay certificate source file is missing
	Overlay Kind = "overlay"
	// Lifecycle control script failure or invalid state transition
	Lifecycle Kind = "lifecycle"
	// UnsupportedPlatform unsupported execution environment
	UnsupportedPlatform Kind = "unsupported_platform"
	// Unknown is reported for errors without a kind
	Unknown Kind = "unknown"
)

// Error carries a kind with a human readable message
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a kind and message, nil stays nil
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the outermost kind found in the error chain
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
