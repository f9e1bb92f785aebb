package errors

import (
	"strings"
	"sync"
)

// MultiError collects multiple errors, it is safe for concurrent use.
type MultiError interface {
	error
	Append(errs ...error)
	AppendWithPrefix(err error, prefix string)
	AppendWithPrefixf(err error, format string, a ...any)
	Len() int
	WrappedErrors() []error
	// ErrorOrNil returns nil if no error has been appended.
	ErrorOrNil() error
}

type multiError struct {
	lock sync.Mutex
	errs []error
}

func NewMultiError() MultiError {
	return &multiError{}
}

func (e *multiError) Append(errs ...error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, err := range errs {
		if err != nil {
			e.errs = append(e.errs, err)
		}
	}
}

func (e *multiError) AppendWithPrefix(err error, prefix string) {
	if err != nil {
		e.Append(PrefixError(err, prefix))
	}
}

func (e *multiError) AppendWithPrefixf(err error, format string, a ...any) {
	if err != nil {
		e.Append(PrefixErrorf(err, format, a...))
	}
}

func (e *multiError) Len() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.errs)
}

func (e *multiError) WrappedErrors() []error {
	e.lock.Lock()
	defer e.lock.Unlock()
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

func (e *multiError) ErrorOrNil() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	switch len(e.errs) {
	case 0:
		return nil
	case 1:
		return e.errs[0]
	default:
		return e
	}
}

func (e *multiError) Unwrap() []error {
	return e.WrappedErrors()
}

func (e *multiError) Error() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	switch len(e.errs) {
	case 0:
		return ""
	case 1:
		return e.errs[0].Error()
	}
	var out strings.Builder
	out.WriteString("multiple errors occurred:")
	for _, err := range e.errs {
		out.WriteString("\n- ")
		out.WriteString(strings.ReplaceAll(err.Error(), "\n", "\n  "))
	}
	return out.String()
}
