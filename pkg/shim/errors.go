package shim

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents the class of error that occurred
type ErrorCode int

const (
	// UnknownErrorCode is the zero value, never produced by this package
	UnknownErrorCode ErrorCode = iota

	// AccessErrorCode marks generation-time failures caused by a contract
	// type or one of its methods not being visible to the caller
	AccessErrorCode

	// ArgumentErrorCode marks generation-time failures caused by invalid
	// input: a non-interface contract, an unsupported signature,
	// conflicting options, or a nil required argument
	ArgumentErrorCode

	// LinkageErrorCode marks first-invocation failures: the resolver
	// returned no target, a target with an incompatible shape, or failed
	// while resolving
	LinkageErrorCode
)

// String returns the string representation of the error code
func (c ErrorCode) String() string {
	switch c {
	case AccessErrorCode:
		return "AccessError"
	case ArgumentErrorCode:
		return "ArgumentError"
	case LinkageErrorCode:
		return "LinkageError"
	default:
		return "UnknownError"
	}
}

// Error is the error type produced by this package. Generation failures
// carry AccessErrorCode or ArgumentErrorCode; call-time linkage failures
// carry LinkageErrorCode and name the method that triggered them.
type Error struct {
	Code    ErrorCode // class of error
	Message string    // error message
	Method  string    // signature of the method involved, if any
	Cause   error     // underlying error cause
	Hints   []string  // helpful suggestions for fixing the error
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code.String())
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Method != "" {
		fmt.Fprintf(&sb, " (method %s)", e.Method)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %s", e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error cause for error chain inspection
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithMethod records the method signature the error relates to
func (e *Error) WithMethod(method string) *Error {
	e.Method = method
	return e
}

// WithCause adds an underlying error cause
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHint adds a helpful suggestion for fixing the error
func (e *Error) WithHint(hint string) *Error {
	e.Hints = append(e.Hints, hint)
	return e
}

// newError creates a new Error with the specified code and formatted message
func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewAccessError creates a generation-time visibility error
func NewAccessError(format string, args ...any) *Error {
	return newError(AccessErrorCode, format, args...)
}

// NewArgumentError creates a generation-time invalid-input error
func NewArgumentError(format string, args ...any) *Error {
	return newError(ArgumentErrorCode, format, args...)
}

// NewLinkageError creates a call-time linkage error
func NewLinkageError(format string, args ...any) *Error {
	return newError(LinkageErrorCode, format, args...)
}

// CodeOf returns the error code carried by err, or UnknownErrorCode if err
// was not produced by this package
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return UnknownErrorCode
}

// IsAccessError reports whether err is an access error
func IsAccessError(err error) bool {
	return CodeOf(err) == AccessErrorCode
}

// IsArgumentError reports whether err is an argument error
func IsArgumentError(err error) bool {
	return CodeOf(err) == ArgumentErrorCode
}

// IsLinkageError reports whether err is a linkage error
func IsLinkageError(err error) bool {
	return CodeOf(err) == LinkageErrorCode
}
