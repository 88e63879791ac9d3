// Package apperr defines the coded errors returned by services, middleware
// and handlers. Every error that reaches a client carries one of the codes
// below; anything else is reported as INTERNAL_ERROR.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

// Error codes exposed in the response envelope.
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeCaptchaFailed      = "CAPTCHA_FAILED"
	CodeCSRFBlocked        = "CSRF_BLOCKED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Context keys carried on oops errors.
const (
	keyMessage = "public_message"
	keyDetails = "details"
)

var statusByCode = map[string]int{
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeValidation:         http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeEmailTaken:         http.StatusConflict,
	CodeUsernameTaken:      http.StatusConflict,
	CodeInvalidCredentials: http.StatusUnauthorized,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeCaptchaFailed:      http.StatusBadRequest,
	CodeCSRFBlocked:        http.StatusForbidden,
	CodeInternal:           http.StatusInternalServerError,
}

// New returns a coded error whose message is safe to show to clients.
func New(code, message string) error {
	return oops.Code(code).With(keyMessage, message).Errorf("%s", message)
}

// WithDetails is New plus a structured details payload.
func WithDetails(code, message string, details any) error {
	return oops.Code(code).
		With(keyMessage, message).
		With(keyDetails, details).
		Errorf("%s", message)
}

func Unauthorized(message string) error { return New(CodeUnauthorized, message) }
func Forbidden(message string) error    { return New(CodeForbidden, message) }
func NotFound(message string) error     { return New(CodeNotFound, message) }
func Conflict(message string) error     { return New(CodeConflict, message) }

// Validation builds a VALIDATION_ERROR. fieldErrors may be nil for errors
// that are not tied to a single field, like a malformed path id.
func Validation(message string, fieldErrors map[string][]string) error {
	if len(fieldErrors) == 0 {
		return New(CodeValidation, message)
	}
	return WithDetails(CodeValidation, message, map[string]any{"fieldErrors": fieldErrors})
}

// Internal wraps an unexpected failure. The wrapped error is logged but
// never rendered.
func Internal(err error) error {
	return oops.Code(CodeInternal).With(keyMessage, "Unexpected server error.").Wrap(err)
}

// Public is the client-facing view of an error.
type Public struct {
	Status  int
	Code    string
	Message string
	Details any
}

// Resolve maps any error to its client-facing view. Errors without a known
// code resolve to INTERNAL_ERROR with a generic message.
func Resolve(err error) Public {
	internal := Public{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "Unexpected server error.",
	}
	oe, ok := oops.AsOops(err)
	if !ok {
		return internal
	}
	code := CodeOf(err)
	status, known := statusByCode[code]
	if !known || code == CodeInternal {
		return internal
	}
	ctx := oe.Context()
	msg, _ := ctx[keyMessage].(string)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return Public{Status: status, Code: code, Message: msg, Details: ctx[keyDetails]}
}

// CodeOf returns the oops code of err, or "" when err carries none.
func CodeOf(err error) string {
	oe, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oe.Code()
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool { return CodeOf(err) == code }

// StatusFor returns the HTTP status for a code, defaulting to 500.
func StatusFor(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
