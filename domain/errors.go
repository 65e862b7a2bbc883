// Package domain defines core types, interfaces, and errors for the
// privilege authorization engine.
package domain

import "fmt"

// Fixed message fragments surfaced to the REST boundary. Client tooling
// greps for these to distinguish the two unauthorized outcomes, so they
// must stay stable.
const (
	NotVisibleMsg  = "is not visible to principal"
	NoPrivilegeMsg = "does not have privilege"
)

// StoreUnavailableError indicates the backing privilege store is
// unreachable. It is retryable infrastructure failure: callers must fail
// closed and must never interpret it as "no privilege".
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("privilege store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// ErrStoreUnavailable wraps a driver error with the failing operation.
func ErrStoreUnavailable(op string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Err: err}
}

// NotVisibleError indicates the principal holds no privilege on the entity
// or anything visible beneath it. Used by listing and existence checks.
type NotVisibleError struct {
	Principal string
	Entity    EntityRef
}

func (e *NotVisibleError) Error() string {
	return fmt.Sprintf("entity %s %s %s", e.Entity.Key(), NotVisibleMsg, e.Principal)
}

// ErrNotVisible creates a NotVisibleError.
func ErrNotVisible(principal string, entity EntityRef) *NotVisibleError {
	return &NotVisibleError{Principal: principal, Entity: entity}
}

// NoPrivilegeError indicates the principal can see the entity but lacks
// the specific action. Used by mutating operations.
type NoPrivilegeError struct {
	Principal string
	Entity    EntityRef
	Action    Action
}

func (e *NoPrivilegeError) Error() string {
	return fmt.Sprintf("principal %s %s %s on entity %s",
		e.Principal, NoPrivilegeMsg, e.Action, e.Entity.Key())
}

// ErrNoPrivilege creates a NoPrivilegeError.
func ErrNoPrivilege(principal string, entity EntityRef, action Action) *NoPrivilegeError {
	return &NoPrivilegeError{Principal: principal, Entity: entity, Action: action}
}
