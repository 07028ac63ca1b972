package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap attaches code and message to err. Returns nil if err is nil.
// Context errors keep their own codes regardless of the requested one.
func Wrap(err error, code Code, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeTimeout
	case errors.Is(err, context.Canceled):
		code = CodeCanceled
	}
	return New(code, message, append(opts, WithCause(err))...)
}

// Wrapf wraps err with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// As extracts the outermost *Error from the chain, or nil.
func As(err error) *Error {
	var netErr *Error
	if errors.As(err, &netErr) {
		return netErr
	}
	return nil
}

// Is reports whether the outermost *Error in the chain has the given code.
func Is(err error, code Code) bool {
	if e := As(err); e != nil {
		return e.code == code
	}
	return false
}

// CodeOf returns the code of the outermost *Error, or CodeInternal for
// foreign errors. Returns "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e := As(err); e != nil {
		return e.code
	}
	return CodeInternal
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	if e := As(err); e != nil {
		return e.Retryable()
	}
	return false
}
