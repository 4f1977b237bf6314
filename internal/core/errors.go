package core

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks across packages.
var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrExceedsGoalBalance  = errors.New("exceeds goal balance")
	ErrNotFound            = errors.New("not found")
	ErrStorage             = errors.New("storage failure")
)

// ValidationError rejects a request before any log mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientBalanceError is returned when an expense or a goal withdrawal asks
// for more than is available.
type InsufficientBalanceError struct {
	Current   Money
	Requested Money
	// Goal is set when the balance checked was a goal's available balance.
	Goal bool
}

func (e *InsufficientBalanceError) Error() string {
	if e.Goal {
		return fmt.Sprintf("exceeds goal balance: available %d, requested %d", e.Current.Cents, e.Requested.Cents)
	}
	return fmt.Sprintf("insufficient balance: current %d, requested %d", e.Current.Cents, e.Requested.Cents)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	if target == ErrInsufficientBalance {
		return true
	}
	return e.Goal && target == ErrExceedsGoalBalance
}

// StorageError wraps a failure of the persistence boundary. No retry is attempted.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageError. Errors that already belong to the
// taxonomy pass through unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// NotFound reports a missing record of the given kind.
func NotFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}
