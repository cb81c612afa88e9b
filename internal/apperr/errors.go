// Package apperr defines the errors services return to the HTTP layer.
package apperr

import (
	"errors"
	"fmt"

	"github.com/marshallshelly/fenceorders/pkg/runtime"
)

// msgOutOfRange is returned for rows the store rejects by a CHECK
// constraint or numeric precision that input validation let through.
const msgOutOfRange = "a value is outside the allowed range"

// ErrUnauthenticated is returned when no valid identity accompanies a request.
var ErrUnauthenticated = errors.New("unauthenticated")

// ValidationError reports malformed, missing or out-of-range input. Message
// is shown to the caller verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ReferenceError reports a foreign id that does not exist.
type ReferenceError struct {
	Field   string
	Message string
}

func (e *ReferenceError) Error() string { return e.Message }

// AuthenticationError reports bad credentials or a missing/invalid token.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrUnauthenticated) match any AuthenticationError.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrUnauthenticated
}

// ForbiddenError reports a valid identity without the required privilege or
// ownership.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return "forbidden: " + e.Reason
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// UnsupportedTypeError reports an unknown product discriminator.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported product type %q", e.Type)
}

// ConflictError reports a write rejected by uniqueness or a restricting
// reference.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// StoreError wraps an unexpected persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Validation returns a *ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Reference returns a *ReferenceError.
func Reference(field, message string) error {
	return &ReferenceError{Field: field, Message: message}
}

// Forbidden returns a *ForbiddenError.
func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

// NotFound returns a *NotFoundError.
func NotFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// Conflict returns a *ConflictError.
func Conflict(message string) error {
	return &ConflictError{Message: message}
}

// Store wraps err as a *StoreError unless it already belongs to the
// taxonomy, in which case it is returned unchanged. CHECK violations and
// numeric overflow become a *ValidationError. A nil err stays nil.
func Store(op string, err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	if errors.Is(err, runtime.ErrCheckViolation) || errors.Is(err, runtime.ErrNumericOutOfRange) {
		return &ValidationError{Message: msgOutOfRange}
	}
	return &StoreError{Op: op, Err: err}
}

// IsDomain reports whether err is one of the caller-facing errors of this
// package (everything except StoreError).
func IsDomain(err error) bool {
	var (
		validation  *ValidationError
		reference   *ReferenceError
		auth        *AuthenticationError
		forbidden   *ForbiddenError
		notFound    *NotFoundError
		unsupported *UnsupportedTypeError
		conflict    *ConflictError
	)
	return errors.Is(err, ErrUnauthenticated) ||
		errors.As(err, &validation) ||
		errors.As(err, &reference) ||
		errors.As(err, &auth) ||
		errors.As(err, &forbidden) ||
		errors.As(err, &notFound) ||
		errors.As(err, &unsupported) ||
		errors.As(err, &conflict)
}
