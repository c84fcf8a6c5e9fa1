// Package apperr defines the typed errors raised by the pipeline components.
// The HTTP boundary maps each type to a status code.
package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError indicates malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// AuthenticationError indicates a missing or invalid session.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string {
	return "authentication required"
}

// ForbiddenError indicates the caller has the wrong role or does not own the entity.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

// NotFoundError indicates an unknown public identifier.
type NotFoundError struct {
	Entity string
	UID    uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.UID)
}

// ConflictError indicates a duplicate entity or a transition that is not valid
// from the current state.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a ForbiddenError.
func Forbidden(format string, args ...any) error {
	return &ForbiddenError{Reason: fmt.Sprintf(format, args...)}
}

// NotFound builds a NotFoundError.
func NotFound(entity string, uid uuid.UUID) error {
	return &NotFoundError{Entity: entity, UID: uid}
}

// Conflict builds a ConflictError.
func Conflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidTransition reports an action that cannot be applied from the current status.
func InvalidTransition(entity string, from any, action string) error {
	return &ConflictError{Reason: fmt.Sprintf("%s: action %q not allowed from status %v", entity, action, from)}
}

// UnknownAction reports an action name that the entity does not define.
func UnknownAction(entity, action string) error {
	return &ConflictError{Reason: fmt.Sprintf("%s: unknown action %q", entity, action)}
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is, or wraps, a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsForbidden reports whether err is, or wraps, a ForbiddenError.
func IsForbidden(err error) bool {
	var f *ForbiddenError
	return errors.As(err, &f)
}
