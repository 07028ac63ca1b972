package errors

import (
	"fmt"
	"strings"
)

// Error is the structured error returned by netbus transports and helpers.
type Error struct {
	code     Code
	category Category
	message  string
	op       string
	addr     string
	cause    error
}

// Error renders "op addr: message: cause", omitting empty parts.
func (e *Error) Error() string {
	var b strings.Builder
	if e.op != "" {
		b.WriteString(e.op)
	}
	if e.addr != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.addr)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(e.message)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() Category {
	return e.category
}

// Retryable reports whether the failed call may succeed if repeated.
func (e *Error) Retryable() bool {
	return e.category.IsRetryable()
}

// Op returns the operation that failed, if set.
func (e *Error) Op() string {
	return e.op
}

// Address returns the remote address involved, if set.
func (e *Error) Address() string {
	return e.addr
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// WithOp records the failing operation ("send", "listen", ...).
func WithOp(op string) Option {
	return func(e *Error) {
		e.op = op
	}
}

// WithAddress records the remote address involved.
func WithAddress(addr string) Option {
	return func(e *Error) {
		e.addr = addr
	}
}

// WithCategory overrides the category implied by the code.
func WithCategory(cat Category) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// New creates a new Error with the given code and message.
func New(code Code, message string, opts ...Option) *Error {
	e := &Error{
		code:     code,
		category: code.DefaultCategory(),
		message:  message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Closed creates a CLOSED error for the given operation.
func Closed(op string) *Error {
	return New(CodeClosed, "transport closed", WithOp(op))
}

// Unreachable creates an UNREACHABLE error for addr.
func Unreachable(addr string, opts ...Option) *Error {
	return New(CodeUnreachable, "peer unreachable", append([]Option{WithAddress(addr)}, opts...)...)
}

// InvalidInput creates an INVALID_INPUT error.
func InvalidInput(message string, opts ...Option) *Error {
	return New(CodeInvalidInput, message, opts...)
}
