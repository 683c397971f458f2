package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store lookups when no record has the given id.
var ErrNotFound = errors.New("record not found")

// ErrUnsyncedRecord is returned by the mutation façade when an online update
// or delete targets a record that only exists locally (negative id). Such
// records can only be resolved by replaying their queued create.
var ErrUnsyncedRecord = errors.New("record has not been synced yet")

// ValidationError rejects caller input before any storage or network effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NetworkError reports an unreachable remote API or a non-2xx response.
// Status is zero for transport failures; Body carries the response text for
// HTTP-level failures.
type NetworkError struct {
	Status int
	Body   string
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote API unreachable: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("remote API returned %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("remote API returned %d", e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UnresolvedReferenceError indicates a queued operation whose foreign key
// could not be mapped to a server id during replay.
type UnresolvedReferenceError struct {
	Kind    Kind
	LocalID int64
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("cannot resolve %s id %d to a server id", e.Kind, e.LocalID)
}

// StorageError wraps a failed local store operation. The enclosing
// transaction has been rolled back, so the operation log and its records
// remain consistent.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
