package apperr

import (
	"errors"
	"fmt"
)

const (
	CodeValidation     = "VALIDATION"
	CodeNetwork        = "NETWORK"
	CodeBackend        = "BACKEND"
	CodeNotFound       = "NOT_FOUND"
	CodeStale          = "STALE"
	CodeRender         = "RENDER"
	CodeCDPUnavailable = "CDP_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	// Status is the backend HTTP status for NETWORK errors, 0 otherwise.
	Status int
	Cause  error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// New builds a CodedError.
func New(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// Validation reports missing or malformed user input.
func Validation(msg string) error {
	return &CodedError{Code: CodeValidation, Message: msg}
}

// HTTPStatus reports a non-2xx backend response.
func HTTPStatus(status int) error {
	return &CodedError{Code: CodeNetwork, Message: fmt.Sprintf("HTTP error! status: %d", status), Status: status}
}

// CodeOf returns the code of the first CodedError in err's chain, or "".
func CodeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Message returns the user-facing message of err: the Message of its first
// CodedError, or err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}
