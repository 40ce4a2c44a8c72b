// Package domain holds the quote entity and the errors quote use cases
// return. Errors describe failures in quote terms; adapters decide how a
// transport reports them.
package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every typed error below unwraps to exactly one of them.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("unavailable")
)

// NotFoundError is returned for an unknown id or a search without matches.
// ID and Criteria are mutually exclusive.
type NotFoundError struct {
	Entity   string
	ID       string
	Criteria string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
	}

	if e.Criteria != "" {
		return fmt.Sprintf("no %s found %s", e.Entity, e.Criteria)
	}

	return e.Entity + " not found"
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError reports that entity id does not exist.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewNoMatchError reports that a search over entity found nothing. criteria
// completes the sentence "no <entity> found ...".
func NewNoMatchError(entity, criteria string) error {
	return &NotFoundError{Entity: entity, Criteria: criteria}
}

// ValidationError rejects client input. Field is empty when the problem is
// not tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}

	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError rejects the value of field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UnavailableError means a dependency, usually the quote store, cannot serve
// right now. Retrying later may succeed.
type UnavailableError struct {
	Service string
	Reason  string
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("service %q unavailable", e.Service)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	return msg
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// NewUnavailableError reports service as unavailable for reason.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool  { return errors.Is(err, ErrValidation) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
