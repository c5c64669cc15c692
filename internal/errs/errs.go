// Package errs defines the error taxonomy shared by the engine, the session
// actors and the transports.
package errs

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code sent to clients.
type Code string

const (
	CodeInvalidCode     Code = "INVALID_CODE"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeDuplicateCode   Code = "DUPLICATE_CODE"
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodeEmptyName       Code = "EMPTY_NAME"
	CodeBothSidesTaken  Code = "BOTH_SIDES_TAKEN"
	CodeInvalidRole     Code = "INVALID_ROLE"
	CodeSidesIncomplete Code = "SIDES_INCOMPLETE"
	CodeIllegalAction   Code = "ILLEGAL_ACTION"
	CodeAlreadyStarted  Code = "ALREADY_STARTED"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus maps a code to the status used by the REST surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidCode, CodeInvalidFormat, CodeEmptyName, CodeInvalidRole, CodeBadRequest:
		return http.StatusBadRequest
	case CodeDuplicateCode, CodeBothSidesTaken, CodeSidesIncomplete, CodeIllegalAction, CodeAlreadyStarted:
		return http.StatusConflict
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a Code, a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so wrapped or re-created errors
// compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

var (
	ErrInvalidCode     = New(CodeInvalidCode, "invalid code: use uppercase letters and digits")
	ErrInvalidFormat   = New(CodeInvalidFormat, "invalid format")
	ErrDuplicateCode   = New(CodeDuplicateCode, "party code already exists")
	ErrSessionNotFound = New(CodeSessionNotFound, "party code not found")
	ErrEmptyName       = New(CodeEmptyName, "team leader name is empty")
	ErrBothSidesTaken  = New(CodeBothSidesTaken, "both leader slots are already taken")
	ErrInvalidRole     = New(CodeInvalidRole, "invalid role")
	ErrSidesIncomplete = New(CodeSidesIncomplete, "both team leaders must join before starting")
	ErrIllegalAction   = New(CodeIllegalAction, "illegal action")
	ErrAlreadyStarted  = New(CodeAlreadyStarted, "pick/ban already started")
	ErrUnauthorized    = New(CodeUnauthorized, "unauthorized")
	ErrInternal        = New(CodeInternal, "internal error")
)

// CodeOf extracts the code of err, or CodeInternal when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}
