package services

import (
	"errors"
	"fmt"
)

// ErrDuplicateStatement is returned when byte-identical content was already
// imported for the account, regardless of filename.
var ErrDuplicateStatement = errors.New("statement already imported for this account")

// ValidationError is a business-rule violation attributable to a field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing referenced entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
