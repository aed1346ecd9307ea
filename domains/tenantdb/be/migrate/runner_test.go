package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/repo"
	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
	"github.com/JSisques/saas-boilerplate-sub000/platform/go/tenantdb"
)

type stubPools struct {
	getErrFor   map[uuid.UUID]error
	invalidated []uuid.UUID
}

func (s *stubPools) Get(ctx context.Context, tenantID uuid.UUID) (*pgxpool.Pool, error) {
	if err := s.getErrFor[tenantID]; err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *stubPools) Invalidate(tenantID uuid.UUID) {
	s.invalidated = append(s.invalidated, tenantID)
}

type stubApplier struct {
	res   ApplyResult
	err   error
	calls int
}

func (s *stubApplier) Apply(context.Context, *pgxpool.Pool) (ApplyResult, error) {
	s.calls++
	return s.res, s.err
}

type recordingPublisher struct {
	events []service.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...service.Event) {
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) names() []string {
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventName())
	}
	return out
}

func newActiveRecord(t *testing.T, r service.Repository, tenantID uuid.UUID) service.TenantDatabase {
	t.Helper()
	rec := service.NewTenantDatabase(tenantID, "tenant_"+tenantID.String()[:8])
	_, err := rec.MarkActive()
	require.NoError(t, err)
	stored, err := r.Create(context.Background(), rec)
	require.NoError(t, err)
	return stored
}

func newTestRunner(r service.Repository, pools *stubPools, applier *stubApplier) *Runner {
	return NewRunner(RunnerConfig{
		Repo:    r,
		Pools:   pools,
		Applier: applier,
		Locks:   tenantdb.NewLocks(),
		Logger:  zap.NewNop(),
	})
}

func TestMigrateTenantSuccess(t *testing.T) {
	r := repo.NewMemoryRepository()
	pools := &stubPools{}
	applier := &stubApplier{res: ApplyResult{Version: "2", Applied: 2}}
	runner := newTestRunner(r, pools, applier)

	tenantID := uuid.New()
	newActiveRecord(t, r, tenantID)

	result := runner.MigrateTenant(context.Background(), tenantID)

	require.NoError(t, result.Err)
	require.True(t, result.Success)
	require.Equal(t, "2", result.MigrationVersion)
	require.Equal(t, []uuid.UUID{tenantID}, pools.invalidated, "cached pool must be evicted after a real migration")

	rec, err := r.GetByTenantID(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, service.StatusActive, rec.Status)
	require.NotNil(t, rec.SchemaVersion)
	require.Equal(t, "2", *rec.SchemaVersion)
	require.NotNil(t, rec.LastMigrationAt)
}

func TestMigrateTenantNoPendingMigrations(t *testing.T) {
	r := repo.NewMemoryRepository()
	pools := &stubPools{}
	applier := &stubApplier{}
	runner := newTestRunner(r, pools, applier)

	tenantID := uuid.New()
	newActiveRecord(t, r, tenantID)

	result := runner.MigrateTenant(context.Background(), tenantID)

	require.NoError(t, result.Err)
	require.True(t, result.Success)
	require.Equal(t, NoMigrationsVersion, result.MigrationVersion)
	require.Empty(t, pools.invalidated, "a no-op run keeps the cached pool")

	rec, err := r.GetByTenantID(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, service.StatusActive, rec.Status)
	require.Nil(t, rec.SchemaVersion)
	require.Nil(t, rec.LastMigrationAt)
}

func TestMigrateTenantRefusedWhenNotActive(t *testing.T) {
	r := repo.NewMemoryRepository()
	applier := &stubApplier{}
	runner := newTestRunner(r, &stubPools{}, applier)

	tenantID := uuid.New()
	rec := service.NewTenantDatabase(tenantID, "tenant_pending")
	_, err := r.Create(context.Background(), rec)
	require.NoError(t, err)

	result := runner.MigrateTenant(context.Background(), tenantID)

	var precondition *service.PreconditionError
	require.ErrorAs(t, result.Err, &precondition)
	require.Zero(t, applier.calls)

	stored, err := r.GetByTenantID(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, service.StatusProvisioning, stored.Status, "a refused migration must not mutate the record")
}

func TestMigrateTenantUnknownTenant(t *testing.T) {
	runner := newTestRunner(repo.NewMemoryRepository(), &stubPools{}, &stubApplier{})

	result := runner.MigrateTenant(context.Background(), uuid.New())
	require.ErrorIs(t, result.Err, service.ErrRecordNotFound)
}

func TestMigrateTenantApplyFailureMarksFailed(t *testing.T) {
	r := repo.NewMemoryRepository()
	applier := &stubApplier{err: errors.New("syntax error in 00002_user_audit.sql")}
	runner := newTestRunner(r, &stubPools{}, applier)

	tenantID := uuid.New()
	newActiveRecord(t, r, tenantID)

	result := runner.MigrateTenant(context.Background(), tenantID)

	var physical *service.PhysicalOperationError
	require.ErrorAs(t, result.Err, &physical)
	require.False(t, result.Success)

	rec, err := r.GetByTenantID(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, service.StatusFailed, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
	require.Contains(t, *rec.ErrorMessage, "syntax error")
}

func TestMigrateTenantPoolFailureMarksFailed(t *testing.T) {
	r := repo.NewMemoryRepository()
	tenantID := uuid.New()
	pools := &stubPools{getErrFor: map[uuid.UUID]error{tenantID: errors.New("connection refused")}}
	applier := &stubApplier{}
	runner := newTestRunner(r, pools, applier)

	newActiveRecord(t, r, tenantID)

	result := runner.MigrateTenant(context.Background(), tenantID)

	var physical *service.PhysicalOperationError
	require.ErrorAs(t, result.Err, &physical)
	require.Zero(t, applier.calls)

	rec, err := r.GetByTenantID(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, service.StatusFailed, rec.Status)
}

func TestMigrateTenantPublishesLifecycleEvents(t *testing.T) {
	r := repo.NewMemoryRepository()
	events := &recordingPublisher{}
	runner := NewRunner(RunnerConfig{
		Repo:    r,
		Pools:   &stubPools{},
		Applier: &stubApplier{res: ApplyResult{Version: "2", Applied: 1}},
		Locks:   tenantdb.NewLocks(),
		Events:  events,
		Logger:  zap.NewNop(),
	})

	tenantID := uuid.New()
	newActiveRecord(t, r, tenantID)

	result := runner.MigrateTenant(context.Background(), tenantID)
	require.NoError(t, result.Err)
	require.Equal(t, []string{"tenantdb.migration_started", "tenantdb.migration_completed"}, events.names())
}

func TestMigrateTenantFailurePublishesMigrationFailed(t *testing.T) {
	r := repo.NewMemoryRepository()
	events := &recordingPublisher{}
	runner := NewRunner(RunnerConfig{
		Repo:    r,
		Pools:   &stubPools{},
		Applier: &stubApplier{err: errors.New("syntax error in 00002_user_audit.sql")},
		Locks:   tenantdb.NewLocks(),
		Events:  events,
		Logger:  zap.NewNop(),
	})

	tenantID := uuid.New()
	newActiveRecord(t, r, tenantID)

	result := runner.MigrateTenant(context.Background(), tenantID)
	require.Error(t, result.Err)
	require.Equal(t, []string{"tenantdb.migration_started", "tenantdb.migration_failed"}, events.names())

	failed, ok := events.events[1].(service.MigrationFailed)
	require.True(t, ok)
	require.Equal(t, tenantID, failed.TenantID)
	require.Contains(t, failed.Reason, "syntax error")
}

func TestMigrateAllTenantsIsolatesFailures(t *testing.T) {
	r := repo.NewMemoryRepository()
	healthy := uuid.New()
	broken := uuid.New()
	pools := &stubPools{getErrFor: map[uuid.UUID]error{broken: errors.New("connection refused")}}
	runner := newTestRunner(r, pools, &stubApplier{res: ApplyResult{Version: "2", Applied: 1}})

	newActiveRecord(t, r, healthy)
	newActiveRecord(t, r, broken)

	results, err := runner.MigrateAllTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	byTenant := make(map[uuid.UUID]MigrationResult, len(results))
	for _, result := range results {
		byTenant[result.TenantID] = result
	}

	require.True(t, byTenant[healthy].Success)
	require.Equal(t, "2", byTenant[healthy].MigrationVersion)
	require.False(t, byTenant[broken].Success)
	require.Error(t, byTenant[broken].Err)

	healthyRec, err := r.GetByTenantID(context.Background(), healthy)
	require.NoError(t, err)
	require.Equal(t, service.StatusActive, healthyRec.Status)

	brokenRec, err := r.GetByTenantID(context.Background(), broken)
	require.NoError(t, err)
	require.Equal(t, service.StatusFailed, brokenRec.Status)
}

func TestMigrateAllTenantsEmptyFleet(t *testing.T) {
	runner := newTestRunner(repo.NewMemoryRepository(), &stubPools{}, &stubApplier{})

	results, err := runner.MigrateAllTenants(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
}
