// Package errcodes holds the errors the ops API reports to clients, each
// with its HTTP status and a stable snake_case code.
package errcodes

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

const (
	codeNotFound             = "not_found"
	codeConflict             = "conflict"
	codeUnsupportedMediaType = "unsupported_media_type"
	codeUnknownParameter     = "unknown_parameter"
	codeValidationType       = "validation_type_error"
	codeValidation           = "validation_error"
	codeMalformedPayload     = "malformed_payload"
	codeEmptyRequestBody     = "empty_request_body"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func newError(httpCode int, code, msg string) error {
	return &Error{HTTPCode: httpCode, Message: msg, Code: code}
}

func (err *Error) Error() string {
	return err.Message
}

// Is matches another *Error with the same status, code and message.
func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return *te == *err
}

// NotFound returns a 404 error naming the missing resource.
func NotFound(resource string) error {
	return newError(http.StatusNotFound, codeNotFound, resource+" not found.")
}

// Conflict returns a 409 error, used when a resource is not in a state that
// allows the requested transition.
func Conflict(msg string) error {
	return newError(http.StatusConflict, codeConflict, msg)
}

func UnsupportedMediaType() error {
	return newError(http.StatusUnsupportedMediaType, codeUnsupportedMediaType, "Unsupported Media Type")
}

func UnknownParameter(param string) error {
	return newError(http.StatusUnprocessableEntity, codeUnknownParameter, fmt.Sprintf("Unknown Parameter %q", param))
}

func ValidationTypeError(msg string) error {
	return newError(http.StatusUnprocessableEntity, codeValidationType, msg)
}

func ValidationError(msg string) error {
	return newError(http.StatusUnprocessableEntity, codeValidation, msg)
}

func MalformedPayload() error {
	return newError(http.StatusBadRequest, codeMalformedPayload, "Malformed Payload")
}

func EmptyRequestBody() error {
	return newError(http.StatusBadRequest, codeEmptyRequestBody, "Request body can't be empty.")
}

// IsNotFound reports whether err (or anything it wraps) is a NotFound error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == codeNotFound
}
