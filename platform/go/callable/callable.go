// Package callable carries the error taxonomy and response envelopes of the
// callable-style JSON endpoints: a call answers {"success":true,...} or a
// coded failure mapped to an HTTP status.
package callable

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a call failure.
type Code string

const (
	CodeInvalidArgument Code = "invalid-argument"
	CodeNotFound        Code = "not-found"
	CodeInternal        Code = "internal"
)

// Error is a call-level failure with a wire code and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the code to its transport status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// InvalidArgument builds a validation failure.
func InvalidArgument(message string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: message}
}

// NotFound builds a missing-target failure.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// Internal wraps a store or transport failure, keeping the underlying message.
func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, cause: cause}
}

// AsError extracts a coded error, defaulting unknown errors to internal so the
// taxonomy stays closed at the HTTP boundary.
func AsError(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return Internal("unexpected failure", err)
}

type errorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type failureEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// WriteResult writes a success envelope. Extra fields merge into the body
// next to "success": true.
func WriteResult(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes the failure envelope for err with its mapped status.
func WriteError(w http.ResponseWriter, err error) {
	ce := AsError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ce.HTTPStatus())
	_ = json.NewEncoder(w).Encode(failureEnvelope{
		Success: false,
		Error:   errorBody{Code: ce.Code, Message: ce.Message},
	})
}
