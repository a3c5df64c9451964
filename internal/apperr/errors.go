package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeFormat      = "format"
	CodeConflict    = "conflict"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

// Error is the typed failure returned across package boundaries. Details
// holds field-level messages keyed by dotted JSON path.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func statusForCode(code string) int {
	switch code {
	case CodeValidation, CodeFormat:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  statusForCode(code),
		Err:     cause,
	}
}

func Validation(message string, details map[string]string) *Error {
	e := newError(CodeValidation, message, nil)
	e.Details = details
	return e
}

func InvalidJSON(err error) *Error {
	return newError(CodeValidation, "invalid json: "+err.Error(), nil)
}

func NotFound(message string) *Error {
	return newError(CodeNotFound, message, nil)
}

func Format(message string, cause error) *Error {
	return newError(CodeFormat, message, cause)
}

func Conflict(message string) *Error {
	return newError(CodeConflict, message, nil)
}

func Unavailable(message string, cause error) *Error {
	return newError(CodeUnavailable, message, cause)
}

func Internal(message string, cause error) *Error {
	return newError(CodeInternal, message, cause)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries an *Error with the given code.
func Is(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
