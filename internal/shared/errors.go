package shared

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Typed errors below match them through errors.Is so callers
// can branch on the kind without knowing the concrete type.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates bad or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrState indicates the operation is invalid for the current status.
	ErrState = errors.New("invalid state")
	// ErrReferential indicates a delete blocked by dependent rows.
	ErrReferential = errors.New("referenced by dependent rows")
	// ErrInsufficientStock indicates a stock-out larger than the balance.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConfirmation indicates a destructive operation without the confirmation phrase.
	ErrConfirmation = errors.New("confirmation required")
	// ErrStore indicates a persistence failure.
	ErrStore = errors.New("store failure")
)

// ValidationError reports bad input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}

// DuplicateError reports a name uniqueness violation.
type DuplicateError struct {
	Entity string
	Name   string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Name)
}

func (e DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// StateError reports an operation that is not allowed from the current status.
type StateError struct {
	Entity string
	ID     int64
	Status string
	Action string
}

func (e StateError) Error() string {
	return fmt.Sprintf("cannot %s %s %d in status %s", e.Action, e.Entity, e.ID, e.Status)
}

func (e StateError) Is(target error) bool { return target == ErrState }

// ReferentialError reports a delete blocked by approved dependents.
type ReferentialError struct {
	Entity string
	ID     int64
	Count  int64
}

func (e ReferentialError) Error() string {
	return fmt.Sprintf("cannot delete %s %d: linked to %d approved stock transactions", e.Entity, e.ID, e.Count)
}

func (e ReferentialError) Is(target error) bool { return target == ErrReferential }

// InsufficientStockError carries the available and requested quantities.
type InsufficientStockError struct {
	ItemID    int64
	Available int64
	Requested int64
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("stock-out failed: only %d units of item %d available, requested %d", e.Available, e.ItemID, e.Requested)
}

func (e InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ConfirmationError reports a missing or wrong confirmation phrase.
type ConfirmationError struct {
	Phrase string
}

func (e ConfirmationError) Error() string {
	return fmt.Sprintf("confirmation required: type %q to proceed", e.Phrase)
}

func (e ConfirmationError) Is(target error) bool { return target == ErrConfirmation }

// StoreError wraps an underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

func (e StoreError) Is(target error) bool { return target == ErrStore }

// Store wraps err as a StoreError unless it already carries a domain kind.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return StoreError{Op: op, Err: err}
}

// IsDomain reports whether err belongs to the business-rule taxonomy.
func IsDomain(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrForbidden, ErrValidation, ErrDuplicate, ErrState, ErrReferential, ErrInsufficientStock, ErrConfirmation, ErrStore} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// UserSafeMessage returns a message that can be shown to the caller.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrStore) {
		return "The inventory store is unavailable, please retry."
	}
	if IsDomain(err) {
		return err.Error()
	}
	return "Unexpected error."
}
