package domain

import (
	"errors"
	"fmt"
)

// RetriableError marks errors the caller may safely retry.
type RetriableError interface {
	error
	IsRetriable() bool
}

func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// InvalidInputError rejects a request before any mutation happens.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewInvalidInput(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}

// NotFoundError covers an unknown order id and an absent book, which is
// semantically different from an empty one.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func NewNotFound(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// PersistenceError wraps a store or cache I/O failure. Retriable by default;
// the in-flight operation is aborted before cache and store can diverge.
type PersistenceError struct {
	Op        string
	Err       error
	Retriable bool
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) IsRetriable() bool {
	return e.Retriable
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err, Retriable: true}
}

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// InvariantViolationError flags a book that should never exist: unsorted
// sides or closed orders still resting. Never surfaced to clients.
type InvariantViolationError struct {
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return "book invariant violated: " + e.Detail
}

func NewInvariantViolation(detail string) *InvariantViolationError {
	return &InvariantViolationError{Detail: detail}
}
