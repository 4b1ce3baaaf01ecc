// Package apierr defines the error taxonomy surfaced to API clients.
//
// Messages of *Error values are part of the public contract and are returned
// verbatim; any other error is reported as an internal error with a generic
// message.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API error.
type Kind uint8

const (
	// Internal is the kind of errors that are not caused by the client.
	Internal Kind = iota
	BadRequest
	NotFound
	MethodNotAllowed
	Unavailable
)

var kindLabels = [...]string{
	Internal:         "Internal Server Error",
	BadRequest:       "Bad request",
	NotFound:         "Not found",
	MethodNotAllowed: "Method not allowed",
	Unavailable:      "Service Unavailable",
}

var kindStatus = [...]int{
	Internal:         http.StatusInternalServerError,
	BadRequest:       http.StatusBadRequest,
	NotFound:         http.StatusNotFound,
	MethodNotAllowed: http.StatusMethodNotAllowed,
	Unavailable:      http.StatusServiceUnavailable,
}

// String returns the label used in the "error" field of responses.
func (k Kind) String() string {
	if int(k) < len(kindLabels) {
		return kindLabels[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Status returns the HTTP status code of the kind.
func (k Kind) Status() int {
	if int(k) < len(kindStatus) {
		return kindStatus[k]
	}
	return http.StatusInternalServerError
}

// Error is an error whose message is shown to the client.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// New returns an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an Error of the given kind that unwraps to cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// BadRequestf formats a BadRequest error.
func BadRequestf(format string, args ...any) *Error {
	return &Error{Kind: BadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf formats a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

// MethodNotAllowedf formats a MethodNotAllowed error.
func MethodNotAllowedf(format string, args ...any) *Error {
	return &Error{Kind: MethodNotAllowed, Message: fmt.Sprintf(format, args...)}
}

// Unavailablef formats an Unavailable error.
func Unavailablef(format string, args ...any) *Error {
	return &Error{Kind: Unavailable, Message: fmt.Sprintf(format, args...)}
}

// InternalMessage is the message of errors without an API kind.
const InternalMessage = "An internal error occurred while processing the request."

// Classify maps err to its kind and client-facing message. Errors that are
// not an *Error anywhere in their chain are Internal.
func Classify(err error) (Kind, string) {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Kind, e.Message
	}
	return Internal, InternalMessage
}

// Status returns the HTTP status, the error label and the message for err.
func Status(err error) (int, string, string) {
	kind, msg := Classify(err)
	return kind.Status(), kind.String(), msg
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, _ := Classify(err)
	return k == kind
}
