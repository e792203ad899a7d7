package payments

import (
	"fmt"

	"github.com/hypejunction/payments/internal/entity"
)

// ErrNotFound reports a lookup miss. It aliases the store-level sentinel
// so callers can match either with errors.Is.
var ErrNotFound = entity.ErrNotFound

// MalformedValueError reports a value object constructed from incomplete
// or inconsistent fields.
type MalformedValueError struct {
	Kind   string
	Reason string
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Kind, e.Reason)
}

// CorruptedReferenceError reports a stored nested reference that failed
// to decode into its expected contract. It is absorbed at the point of
// use (logged, surfaced as not-available), never propagated.
type CorruptedReferenceError struct {
	GUID  string
	Field string
	Raw   string
	Err   error
}

func (e *CorruptedReferenceError) Error() string {
	return fmt.Sprintf("transaction %s: corrupted %s reference: %v", e.GUID, e.Field, e.Err)
}

func (e *CorruptedReferenceError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed save to the underlying store. The
// aggregate's in-memory state, including an assigned external id, is
// retained so the caller may retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persistence failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
