package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tendant/keycloak-admin/pkg/kc"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Closed set of domain error codes surfaced to callers
const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeUserNotFound  ErrorCode = "USER_NOT_FOUND"
	ErrCodeGroupNotFound ErrorCode = "GROUP_NOT_FOUND"
	ErrCodeRoleNotFound  ErrorCode = "ROLE_NOT_FOUND"

	ErrCodeUserAlreadyExists  ErrorCode = "USER_ALREADY_EXISTS"
	ErrCodeGroupAlreadyExists ErrorCode = "GROUP_ALREADY_EXISTS"
	ErrCodeRoleAlreadyExists  ErrorCode = "ROLE_ALREADY_EXISTS"

	ErrCodeTokenInvalid   ErrorCode = "TOKEN_INVALID"
	ErrCodeClientNotFound ErrorCode = "CLIENT_NOT_FOUND"
)

// Error represents a structured error with code and message
type Error struct {
	Code    ErrorCode // Unique error code
	Message string    // Human-readable error message
	Err     error     // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	switch e.Code {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeTokenInvalid:
		return http.StatusUnauthorized
	case ErrCodeUserNotFound, ErrCodeGroupNotFound, ErrCodeRoleNotFound, ErrCodeClientNotFound:
		return http.StatusNotFound
	case ErrCodeUserAlreadyExists, ErrCodeGroupAlreadyExists, ErrCodeRoleAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus returns the HTTP status code for any error. Errors that are
// not structured Errors map to 500.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}

// Common error constructors

// NotFound creates a "not found" error for an entity kind
func NotFound(code ErrorCode, resourceType, identifier string) *Error {
	return Newf(code, "%s not found: %s", resourceType, identifier)
}

// AlreadyExists creates an "already exists" error for an entity kind
func AlreadyExists(code ErrorCode, resourceType, identifier string) *Error {
	return Newf(code, "%s already exists: %s", resourceType, identifier)
}

// InvalidToken creates a rejected-credential error
func InvalidToken() *Error {
	return New(ErrCodeTokenInvalid, "access token rejected by the backend")
}

// ClientNotFound creates an unknown realm/client context error
func ClientNotFound(clientID, realm string) *Error {
	return Newf(ErrCodeClientNotFound, "client %s not found in realm %s", clientID, realm)
}

// TranslateCreate classifies a failed creation call by its upstream status
// code: 409 means the entity already exists, 401 a rejected token, 404 an
// unknown realm/client context, anything else a malformed payload. It is
// applied at creation call sites only; lookup misses are signaled by the
// services' exactly-one-match rule instead.
func TranslateCreate(err error, conflict *Error, clientID, realm string) *Error {
	switch kc.StatusOf(err) {
	case http.StatusConflict:
		conflict.Err = err
		return conflict
	case http.StatusUnauthorized:
		return Wrap(err, ErrCodeTokenInvalid, "access token rejected by the backend")
	case http.StatusNotFound:
		return Wrap(err, ErrCodeClientNotFound,
			fmt.Sprintf("client %s not found in realm %s", clientID, realm))
	default:
		return Wrap(err, ErrCodeInvalidInput, "representation rejected by the backend")
	}
}
