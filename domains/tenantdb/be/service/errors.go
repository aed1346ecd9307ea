package service

import (
	"errors"
	"fmt"
)

// Errors returned by the tenant database control plane. NotFound, AlreadyExists
// and Precondition failures mean the request itself was invalid and must not be
// retried; PhysicalOperationError means the operation was attempted against the
// database engine and failed.
var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrRecordNotFound = errors.New("tenant database record not found")
	ErrAlreadyExists  = errors.New("tenant database already exists")
)

// PreconditionError reports an illegal lifecycle transition, e.g. migrating a
// record that is not ACTIVE. It names the current status so the caller can
// diagnose the bug.
type PreconditionError struct {
	Op     string
	Status Status
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: illegal in status %q", e.Op, e.Status)
}

// PhysicalOperationError wraps a database engine failure during create, drop or
// migrate. The message is also recorded on the lifecycle record.
type PhysicalOperationError struct {
	Op  string
	Err error
}

func (e *PhysicalOperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PhysicalOperationError) Unwrap() error { return e.Err }
