package migrate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
	"github.com/JSisques/saas-boilerplate-sub000/platform/go/tenantdb"
)

// NoMigrationsVersion is reported when a migration run found nothing pending.
// The record's schemaVersion and lastMigrationAt are left untouched in that case.
const NoMigrationsVersion = "no-migrations"

// PoolProvider hands out tenant connection pools; implemented by the tenant
// connection cache.
type PoolProvider interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*pgxpool.Pool, error)
	Invalidate(tenantID uuid.UUID)
}

// ApplyResult describes one migration batch.
type ApplyResult struct {
	// Version identifies the most recently applied migration.
	Version string
	// Applied is the number of migrations run; zero means nothing was pending.
	Applied int
}

// Applier applies all pending schema migrations to one tenant database.
type Applier interface {
	Apply(ctx context.Context, pool *pgxpool.Pool) (ApplyResult, error)
}

// MigrationResult is the per-tenant outcome of a migration run.
type MigrationResult struct {
	TenantID         uuid.UUID
	Success          bool
	MigrationVersion string
	Err              error
}

// Runner executes schema migrations against one tenant database or the whole
// active fleet, driving the MIGRATING status transitions as a side effect.
type Runner struct {
	repo        service.Repository
	pools       PoolProvider
	applier     Applier
	locks       *tenantdb.Locks
	events      service.EventPublisher
	logger      *zap.Logger
	concurrency int
}

// RunnerConfig wires the migration runner. Concurrency bounds the number of
// tenants migrated in parallel by MigrateAllTenants (default 4). Locks must be
// the same instance used by the provisioning orchestrator.
type RunnerConfig struct {
	Repo        service.Repository
	Pools       PoolProvider
	Applier     Applier
	Locks       *tenantdb.Locks
	Events      service.EventPublisher
	Logger      *zap.Logger
	Concurrency int
}

// NewRunner constructs a migration runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Repo == nil {
		panic("migration runner requires repository")
	}
	if cfg.Pools == nil {
		panic("migration runner requires pool provider")
	}
	if cfg.Applier == nil {
		panic("migration runner requires applier")
	}
	if cfg.Locks == nil {
		panic("migration runner requires tenant locks")
	}
	if cfg.Logger == nil {
		panic("migration runner requires logger")
	}
	events := cfg.Events
	if events == nil {
		events = service.NopPublisher{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Runner{
		repo:        cfg.Repo,
		pools:       cfg.Pools,
		applier:     cfg.Applier,
		locks:       cfg.Locks,
		events:      events,
		logger:      cfg.Logger,
		concurrency: concurrency,
	}
}

// MigrateTenant applies all pending migrations to one tenant's database. The
// record must be ACTIVE; anything else is a caller bug reported as a
// precondition failure without mutating state. Zero pending migrations is a
// successful no-op that leaves schemaVersion and lastMigrationAt untouched.
func (r *Runner) MigrateTenant(ctx context.Context, tenantID uuid.UUID) MigrationResult {
	r.locks.Lock(tenantID)
	defer r.locks.Unlock(tenantID)

	rec, err := r.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return MigrationResult{TenantID: tenantID, Err: err}
	}

	ev, err := rec.BeginMigration()
	if err != nil {
		return MigrationResult{TenantID: tenantID, Err: err}
	}
	if rec, err = r.repo.Update(ctx, rec); err != nil {
		return MigrationResult{TenantID: tenantID, Err: err}
	}
	r.events.Publish(ctx, ev)

	pool, err := r.pools.Get(ctx, tenantID)
	if err != nil {
		physErr := &service.PhysicalOperationError{Op: "build tenant pool " + rec.DatabaseName, Err: err}
		r.failMigration(ctx, rec, physErr)
		return MigrationResult{TenantID: tenantID, Err: physErr}
	}

	applied, err := r.applier.Apply(ctx, pool)
	if err != nil {
		physErr := &service.PhysicalOperationError{Op: "migrate " + rec.DatabaseName, Err: err}
		r.failMigration(ctx, rec, physErr)
		return MigrationResult{TenantID: tenantID, Err: physErr}
	}

	if applied.Applied == 0 {
		if err := rec.FinishMigrationNoop(); err != nil {
			return MigrationResult{TenantID: tenantID, Err: err}
		}
		if _, err := r.repo.Update(ctx, rec); err != nil {
			return MigrationResult{TenantID: tenantID, Err: err}
		}
		return MigrationResult{TenantID: tenantID, Success: true, MigrationVersion: NoMigrationsVersion}
	}

	now := time.Now().UTC()
	done, err := rec.CompleteMigration(applied.Version, now)
	if err != nil {
		return MigrationResult{TenantID: tenantID, Err: err}
	}
	if _, err := r.repo.Update(ctx, rec); err != nil {
		return MigrationResult{TenantID: tenantID, Err: err}
	}

	// Subsequent requests must build a fresh pool against the migrated schema.
	r.pools.Invalidate(tenantID)
	r.events.Publish(ctx, done)

	r.logger.Info("tenant migrated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("database", rec.DatabaseName),
		zap.String("schema_version", applied.Version),
		zap.Int("applied", applied.Applied),
	)
	return MigrationResult{TenantID: tenantID, Success: true, MigrationVersion: applied.Version}
}

// MigrateAllTenants migrates every non-deleted ACTIVE tenant with bounded
// concurrency. One tenant's failure never aborts or rolls back another's;
// failures are collected into the per-tenant results.
func (r *Runner) MigrateAllTenants(ctx context.Context) ([]MigrationResult, error) {
	records, err := r.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]MigrationResult, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			results[i] = r.MigrateTenant(ctx, rec.TenantID)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// failMigration moves the record to FAILED with the primary error message.
// This is best effort: a failing status update is logged, never thrown, since
// the caller already holds the migration error.
func (r *Runner) failMigration(ctx context.Context, rec service.TenantDatabase, cause error) {
	ev := rec.FailMigration(cause.Error())
	if _, err := r.repo.Update(ctx, rec); err != nil {
		r.logger.Error("mark migration failed",
			zap.String("tenant_id", rec.TenantID.String()),
			zap.NamedError("compensation_error", err),
			zap.NamedError("original_error", cause),
		)
		return
	}
	r.events.Publish(ctx, ev)
}
