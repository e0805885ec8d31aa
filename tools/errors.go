package tools

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of the transport that reports it.
type Kind string

const (
	KindUnknownOperation Kind = "UnknownOperation"
	KindInvalidArgument  Kind = "InvalidArgument"
	KindUpstreamFailure  Kind = "UpstreamFailure"
	KindSessionNotFound  Kind = "SessionNotFound"
	KindMalformedRequest Kind = "MalformedRequest"
)

// JSON-RPC 2.0 error codes. The -320xx codes are in the range reserved for
// implementation-defined server errors.
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeSessionNotFound = -32001
	CodeUpstreamFailure = -32002
)

// Error represents a failure while handling a request, carrying the
// JSON-RPC code the transport layer reports it with.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Field   string // offending argument, InvalidArgument only
	Cause   error  // The underlying error, if any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (code: %d): %v", e.Message, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error of the given kind.
func NewError(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NewUnknownOperationError reports a tool or method name nothing is registered under.
func NewUnknownOperationError(name string) *Error {
	return NewError(KindUnknownOperation, CodeMethodNotFound, fmt.Sprintf("unknown operation: %s", name))
}

// NewInvalidArgumentError reports an argument that failed validation.
// This corresponds to JSON-RPC error code -32602.
func NewInvalidArgumentError(field, format string, args ...any) *Error {
	e := NewError(KindInvalidArgument, CodeInvalidParams, fmt.Sprintf(format, args...))
	e.Field = field
	return e
}

// NewUpstreamError wraps a collaborator failure. Only the collaborator's
// message is exposed to the client.
func NewUpstreamError(cause error) *Error {
	e := NewError(KindUpstreamFailure, CodeUpstreamFailure, cause.Error())
	e.Cause = cause
	return e
}

// NewSessionNotFoundError reports a request addressed to a session that does
// not exist or has closed.
func NewSessionNotFoundError(id string) *Error {
	return NewError(KindSessionNotFound, CodeSessionNotFound, fmt.Sprintf("session not found: %s", id))
}

// NewParseError reports a frame that is not valid JSON.
func NewParseError(cause error) *Error {
	e := NewError(KindMalformedRequest, CodeParseError, "parse error")
	e.Cause = cause
	return e
}

// NewInvalidRequestError reports valid JSON that is not a usable request.
func NewInvalidRequestError(message string) *Error {
	return NewError(KindMalformedRequest, CodeInvalidRequest, message)
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
