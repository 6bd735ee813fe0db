// Package errs defines the error taxonomy for the destructive-action and
// audit subsystem. Every error kind here reflects a decision (deny, conflict,
// expired window) rather than a transient fault, so nothing in this package is
// ever retried automatically; callers receive enough structure to distinguish
// the kinds programmatically.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for programmatic handling.
type Kind string

const (
	// KindValidation covers invalid caller input, most notably a missing,
	// too-short, or too-long delete reason, or a reason supplied for a
	// non-DELETE action.
	KindValidation Kind = "VALIDATION"

	// KindAuthorization covers authorization denials.
	KindAuthorization Kind = "AUTHORIZATION"

	// KindNotFound covers absent resources.
	KindNotFound Kind = "NOT_FOUND"

	// KindConflict covers state conflicts such as deleting an already
	// soft-deleted resource or restoring an active one.
	KindConflict Kind = "CONFLICT"

	// KindWindowExpired covers restore attempts past the restore window.
	// Self-service recovery is no longer possible; the caller is directed to
	// an administrator for manual recovery.
	KindWindowExpired Kind = "PURGE_WINDOW_EXPIRED"
)

// Codes carried by authorization errors, matching the engine's deny reasons.
const (
	CodeInsufficientRole = "INSUFFICIENT_ROLE"
	CodeTenantMismatch   = "TENANT_MISMATCH"
)

// Error is the structured error surfaced by this subsystem.
type Error struct {
	Kind    Kind
	Code    string // machine-readable detail code, optional
	Message string
	Err     error // wrapped cause, optional
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation creates a validation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Authorization creates an authorization denial carrying the deny reason code.
func Authorization(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a state-conflict error.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// WindowExpired creates a restore-window-expired error.
func WindowExpired(format string, args ...interface{}) *Error {
	return &Error{Kind: KindWindowExpired, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or "" when err is not a taxonomy error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a taxonomy error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a taxonomy error to its HTTP status code. Unclassified
// errors map to 500 so an unexpected failure is never mistaken for a decision.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindWindowExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
