package services

import (
	"errors"
	"fmt"

	"civictrack/models"
	"civictrack/repository"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrForbidden               = errors.New("forbidden")
	ErrNotFound                = errors.New("not found")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrDuplicateLocation       = errors.New("an active issue already exists at this location")
	ErrNoDepartmentForCategory = errors.New("no department handles this category")
	// ErrConflict means the issue changed between read and write. Callers may
	// re-fetch and retry.
	ErrConflict = errors.New("issue was modified concurrently")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError carries the current and requested status of a rejected
// state change.
type TransitionError struct {
	From models.IssueStatus
	To   models.IssueStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// storeErr maps repository sentinels onto service errors.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	}
	return err
}
