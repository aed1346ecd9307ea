package tenantdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JSisques/saas-boilerplate-sub000/platform/go/persistence"
)

// DatabaseNameResolver looks up the current physical database name for a
// tenant. Implementations must refuse tenants whose database is not ready for
// connections (still provisioning, failed, suspended or deleted).
type DatabaseNameResolver interface {
	ResolveDatabaseName(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// Cache is the lazily-populated, invalidatable cache of live tenant
// connection pools. It is the sole owner of those pools: no other component
// may construct or close them.
type Cache struct {
	resolver DatabaseNameResolver
	conn     ConnTemplate
	locks    *Locks
	logger   *zap.Logger
	openPool func(ctx context.Context, connString string) (*pgxpool.Pool, error)

	mu      sync.RWMutex
	entries map[uuid.UUID]*cacheEntry
}

type cacheEntry struct {
	pool         *pgxpool.Pool
	databaseName string
}

// CacheConfig wires the cache dependencies. OpenPool is overridable for tests
// and defaults to the shared persistence pool bootstrap.
type CacheConfig struct {
	Resolver DatabaseNameResolver
	Conn     ConnTemplate
	Logger   *zap.Logger
	OpenPool func(ctx context.Context, connString string) (*pgxpool.Pool, error)
}

// NewCache constructs the tenant connection cache. The cache keeps its own
// keyed lock set, distinct from the orchestrator's lifecycle locks, so an
// orchestrator holding a tenant's lifecycle lock can still evict that
// tenant's pool.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.Resolver == nil {
		panic("conn cache requires a database name resolver")
	}
	if cfg.Logger == nil {
		panic("conn cache requires logger")
	}

	openPool := cfg.OpenPool
	if openPool == nil {
		openPool = func(ctx context.Context, connString string) (*pgxpool.Pool, error) {
			return persistence.NewPool(ctx, persistence.PoolConfig{ConnString: connString})
		}
	}

	return &Cache{
		resolver: cfg.Resolver,
		conn:     cfg.Conn,
		locks:    NewLocks(),
		logger:   cfg.Logger,
		openPool: openPool,
		entries:  make(map[uuid.UUID]*cacheEntry),
	}
}

// Get returns the cached pool for the tenant, building one on first use. Pool
// construction happens under the per-tenant lock so concurrent first requests
// never race to open duplicate pools; reads for other tenants are unaffected.
func (c *Cache) Get(ctx context.Context, tenantID uuid.UUID) (*pgxpool.Pool, error) {
	if entry := c.lookup(tenantID); entry != nil {
		return entry.pool, nil
	}

	c.locks.Lock(tenantID)
	defer c.locks.Unlock(tenantID)

	// Another caller may have populated the entry while we waited.
	if entry := c.lookup(tenantID); entry != nil {
		return entry.pool, nil
	}

	databaseName, err := c.resolver.ResolveDatabaseName(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant database: %w", err)
	}

	pool, err := c.openPool(ctx, c.conn.URL(databaseName))
	if err != nil {
		return nil, fmt.Errorf("open tenant pool: %w", err)
	}

	c.mu.Lock()
	c.entries[tenantID] = &cacheEntry{pool: pool, databaseName: databaseName}
	c.mu.Unlock()

	c.logger.Info("tenant pool opened",
		zap.String("tenant_id", tenantID.String()),
		zap.String("database", databaseName),
	)

	return pool, nil
}

// Invalidate closes and evicts the tenant's pool. Safe to call when no entry
// exists. Must be called whenever the underlying database name changes, the
// record is deleted, or a migration runs.
func (c *Cache) Invalidate(tenantID uuid.UUID) {
	c.locks.Lock(tenantID)
	defer c.locks.Unlock(tenantID)

	c.mu.Lock()
	entry, ok := c.entries[tenantID]
	delete(c.entries, tenantID)
	c.mu.Unlock()

	if !ok {
		return
	}

	entry.pool.Close()
	c.logger.Info("tenant pool evicted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("database", entry.databaseName),
	)
}

// Close drains every cached pool; used on shutdown.
func (c *Cache) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[uuid.UUID]*cacheEntry)
	c.mu.Unlock()

	for _, entry := range entries {
		entry.pool.Close()
	}
}

func (c *Cache) lookup(tenantID uuid.UUID) *cacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[tenantID]
}
