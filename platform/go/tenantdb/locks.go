package tenantdb

import (
	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"
)

// Locks serializes lifecycle operations per tenant while leaving unrelated
// tenants fully parallel. A single global mutex would make fleet-wide
// migration sequential and starve request traffic, so a keyed mutex is a
// structural requirement here, not an optimization.
type Locks struct {
	km *kmutex.Kmutex
}

// NewLocks builds an empty keyed lock set. The orchestrator and the migration
// runner share one instance so lifecycle operations on the same tenant
// serialize; the connection cache keeps a separate instance of its own.
func NewLocks() *Locks {
	return &Locks{km: kmutex.New()}
}

// Lock acquires the per-tenant lock, blocking until it is free.
func (l *Locks) Lock(tenantID uuid.UUID) {
	l.km.Lock(tenantID)
}

// Unlock releases the per-tenant lock.
func (l *Locks) Unlock(tenantID uuid.UUID) {
	l.km.Unlock(tenantID)
}
