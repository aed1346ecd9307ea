package tenantdb

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JSisques/saas-boilerplate-sub000/platform/go/requesttrace"
)

type poolCtxKey struct{}

// WithPool stores a tenant's connection pool on the context.
func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, poolCtxKey{}, pool)
}

// PoolFromContext retrieves the tenant pool attached by WithTenantPool.
func PoolFromContext(ctx context.Context) (*pgxpool.Pool, bool) {
	pool, ok := ctx.Value(poolCtxKey{}).(*pgxpool.Pool)
	return pool, ok
}

// PoolSource hands out tenant connection pools; implemented by Cache.
type PoolSource interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*pgxpool.Pool, error)
}

// WithTenantPool resolves the calling tenant's connection pool and attaches it
// to the request context. Tenant-scoped handlers read it back with
// PoolFromContext instead of opening connections themselves; the cache behind
// the source stays the sole owner of every pool. The tenant identity comes
// from the request trace, so this must run after the trace middleware.
func WithTenantPool(source PoolSource) func(http.Handler) http.Handler {
	if source == nil {
		panic("tenant pool middleware: pool source is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			audit, ok := requesttrace.FromContext(r.Context())
			if !ok || audit.TenantID == nil || *audit.TenantID == "" {
				http.Error(w, "tenant required", http.StatusUnauthorized)
				return
			}

			tenantID, err := uuid.Parse(*audit.TenantID)
			if err != nil {
				http.Error(w, "invalid tenant id", http.StatusUnauthorized)
				return
			}

			pool, err := source.Get(r.Context(), tenantID)
			if err != nil {
				http.Error(w, "tenant database unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPool(r.Context(), pool)))
		})
	}
}
