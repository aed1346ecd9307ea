package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
)

// NameResolver adapts the lifecycle repository for the connection cache: it
// resolves the current database name for a tenant and refuses tenants whose
// database is not ready to serve connections.
type NameResolver struct {
	repo service.Repository
}

// NewNameResolver wraps a lifecycle repository.
func NewNameResolver(repo service.Repository) *NameResolver {
	if repo == nil {
		panic("name resolver requires repository")
	}
	return &NameResolver{repo: repo}
}

// ResolveDatabaseName returns the stored database name for the tenant. Only
// ACTIVE and MIGRATING records are connectable: provisioning must have
// definitively completed before any pool is built, and the migration runner
// itself needs a pool while the record is MIGRATING.
func (r *NameResolver) ResolveDatabaseName(ctx context.Context, tenantID uuid.UUID) (string, error) {
	rec, err := r.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	switch rec.Status {
	case service.StatusActive, service.StatusMigrating:
		return rec.DatabaseName, nil
	default:
		return "", &service.PreconditionError{Op: "connect", Status: rec.Status}
	}
}
