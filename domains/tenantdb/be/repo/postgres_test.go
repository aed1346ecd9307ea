package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
	"github.com/JSisques/saas-boilerplate-sub000/platform/go/persistence"
)

func TestPostgresRepositoryLifecycle(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping repository integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("control"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() { persistence.ClosePool(pool) })

	require.NoError(t, persistence.BootstrapControlSchema(ctx, pool))

	store, err := persistence.NewTenantDatabaseStore(pool)
	require.NoError(t, err)
	repo := NewPostgresRepository(store)

	tenantID := uuid.New()

	created, err := repo.Create(ctx, service.NewTenantDatabase(tenantID, "tenant_acme"))
	require.NoError(t, err)
	require.Equal(t, service.StatusProvisioning, created.Status)

	// The partial unique index allows one live record per tenant.
	_, err = repo.Create(ctx, service.NewTenantDatabase(tenantID, "tenant_other"))
	require.ErrorIs(t, err, service.ErrAlreadyExists)

	fetched, err := repo.GetByTenantID(ctx, tenantID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)
	require.Equal(t, "tenant_acme", fetched.DatabaseName)
	require.Nil(t, fetched.SchemaVersion)

	_, err = fetched.MarkActive()
	require.NoError(t, err)
	version := "2"
	migratedAt := time.Now().UTC().Truncate(time.Microsecond)
	fetched.SchemaVersion = &version
	fetched.LastMigrationAt = &migratedAt

	updated, err := repo.Update(ctx, fetched)
	require.NoError(t, err)
	require.Equal(t, service.StatusActive, updated.Status)
	require.NotNil(t, updated.SchemaVersion)
	require.Equal(t, "2", *updated.SchemaVersion)
	require.NotNil(t, updated.LastMigrationAt)
	require.Equal(t, migratedAt, updated.LastMigrationAt.UTC())

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, tenantID, active[0].TenantID)

	require.NoError(t, repo.SoftDelete(ctx, created.ID, time.Now().UTC()))

	_, err = repo.GetByTenantID(ctx, tenantID)
	require.ErrorIs(t, err, service.ErrRecordNotFound)

	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	// A second soft delete of the same row reports not found.
	require.ErrorIs(t, repo.SoftDelete(ctx, created.ID, time.Now().UTC()), service.ErrRecordNotFound)

	// With the old record gone, the tenant can be provisioned again.
	_, err = repo.Create(ctx, service.NewTenantDatabase(tenantID, "tenant_acme_v2"))
	require.NoError(t, err)
}

func TestPostgresRepositoryUpdateMissingRecord(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping repository integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("control"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() { persistence.ClosePool(pool) })

	require.NoError(t, persistence.BootstrapControlSchema(ctx, pool))

	store, err := persistence.NewTenantDatabaseStore(pool)
	require.NoError(t, err)
	repo := NewPostgresRepository(store)

	_, err = repo.Update(ctx, service.NewTenantDatabase(uuid.New(), "tenant_ghost"))
	require.ErrorIs(t, err, service.ErrRecordNotFound)

	_, err = repo.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, service.ErrRecordNotFound)
}
