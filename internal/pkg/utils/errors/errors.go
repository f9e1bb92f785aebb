// Package errors provides error construction and wrapping helpers
// used across the whole repository instead of the standard "errors" package.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// StackTrace is a stack of program counters, the most recent call first.
type StackTrace []uintptr

type withStack struct {
	err   error
	trace StackTrace
}

func (e *withStack) Error() string {
	return e.err.Error()
}

func (e *withStack) Unwrap() error {
	return e.err
}

func (e *withStack) StackTrace() StackTrace {
	return e.trace
}

// New returns an error with the given message and a captured stack trace.
func New(message string) error {
	return &withStack{err: errors.New(message), trace: callers()}
}

// Errorf formats an error, the %w verb is supported for wrapping.
func Errorf(format string, a ...any) error {
	return &withStack{err: fmt.Errorf(format, a...), trace: callers()}
}

// PrefixError wraps the error with a message prefix.
func PrefixError(err error, prefix string) error {
	return &withStack{err: fmt.Errorf("%s: %w", prefix, err), trace: callers()}
}

// PrefixErrorf wraps the error with a formatted message prefix.
func PrefixErrorf(err error, format string, a ...any) error {
	return PrefixError(err, fmt.Sprintf(format, a...))
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func callers() StackTrace {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}
