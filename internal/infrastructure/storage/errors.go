package storage

import "fmt"

// NotFoundError indicates a receipt or charge id that does not exist.
type NotFoundError struct {
	Resource string // "receipt" or "charge"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AlreadyMatchedError indicates a confirm attempted on a record that is
// already linked to a different counterpart.
type AlreadyMatchedError struct {
	Resource string // the side that was already linked
	ID       string
}

func (e *AlreadyMatchedError) Error() string {
	return fmt.Sprintf("%s %s is already matched", e.Resource, e.ID)
}

// ValidationError indicates a malformed field value (amount or date text).
// The scorer skips such fields rather than surfacing this error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a storage-level failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
