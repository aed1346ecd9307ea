package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists lifecycle records in the control database. GetByTenantID
// must only consider non-deleted records and return ErrRecordNotFound when
// none exists; Create must return ErrAlreadyExists when a live record for the
// tenant is already present.
type Repository interface {
	Create(ctx context.Context, rec TenantDatabase) (TenantDatabase, error)
	GetByID(ctx context.Context, id uuid.UUID) (TenantDatabase, error)
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (TenantDatabase, error)
	Update(ctx context.Context, rec TenantDatabase) (TenantDatabase, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	ListActive(ctx context.Context) ([]TenantDatabase, error)
}

// TenantDirectory is the external tenant registry; provisioning fails closed
// when the referenced tenant does not exist.
type TenantDirectory interface {
	TenantExists(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// AdminClient runs physical database operations against the bootstrap
// database. CreateDatabase reports false when the database already existed.
type AdminClient interface {
	CreateDatabase(ctx context.Context, name string) (bool, error)
	DropDatabase(ctx context.Context, name string) error
	TerminateBackends(ctx context.Context, name string) error
}

// ConnInvalidator evicts a tenant's cached connection pool. The orchestrator
// never constructs or closes pools itself; the cache owns them.
type ConnInvalidator interface {
	Invalidate(tenantID uuid.UUID)
}
