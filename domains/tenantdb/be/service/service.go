package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JSisques/saas-boilerplate-sub000/platform/go/tenantdb"
)

// TenantDatabaseInfo pairs a lifecycle record with the connection URL built on
// the fly for it. The URL is never stored anywhere.
type TenantDatabaseInfo struct {
	Record        TenantDatabase
	ConnectionURL string
}

// MigrationStatus is the caller-facing view of a record's migration state.
type MigrationStatus struct {
	TenantID        uuid.UUID
	DatabaseName    string
	Status          Status
	SchemaVersion   *string
	LastMigrationAt *time.Time
	ErrorMessage    *string
}

// Service orchestrates tenant database provisioning: it sequences metadata
// record creation, physical database creation and status transitions, with
// best-effort compensation when a step fails partway.
type Service struct {
	repo    Repository
	tenants TenantDirectory
	admin   AdminClient
	cache   ConnInvalidator
	conn    tenantdb.ConnTemplate
	locks   *tenantdb.Locks
	events  EventPublisher
	logger  *zap.Logger
}

// Config wires the orchestrator dependencies.
type Config struct {
	Repo    Repository
	Tenants TenantDirectory
	Admin   AdminClient
	Cache   ConnInvalidator
	Conn    tenantdb.ConnTemplate
	Locks   *tenantdb.Locks
	Events  EventPublisher
	Logger  *zap.Logger
}

// New constructs the orchestrator. Events defaults to a no-op publisher.
func New(cfg Config) *Service {
	if cfg.Repo == nil {
		panic("tenantdb service requires repository")
	}
	if cfg.Tenants == nil {
		panic("tenantdb service requires tenant directory")
	}
	if cfg.Admin == nil {
		panic("tenantdb service requires admin client")
	}
	if cfg.Cache == nil {
		panic("tenantdb service requires connection cache")
	}
	if cfg.Locks == nil {
		panic("tenantdb service requires tenant locks")
	}
	if cfg.Logger == nil {
		panic("tenantdb service requires logger")
	}
	events := cfg.Events
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		repo:    cfg.Repo,
		tenants: cfg.Tenants,
		admin:   cfg.Admin,
		cache:   cfg.Cache,
		conn:    cfg.Conn,
		locks:   cfg.Locks,
		events:  events,
		logger:  cfg.Logger,
	}
}

// CreateTenantDatabase provisions an isolated physical database for the
// tenant. The record is created in PROVISIONING before the physical create so
// a crash in between leaves a diagnosable record rather than an orphan
// database. databaseName is optional; when empty a deterministic name is
// derived from the tenant id.
func (s *Service) CreateTenantDatabase(ctx context.Context, tenantID uuid.UUID, databaseName string) (TenantDatabaseInfo, error) {
	s.locks.Lock(tenantID)
	defer s.locks.Unlock(tenantID)

	exists, err := s.tenants.TenantExists(ctx, tenantID)
	if err != nil {
		return TenantDatabaseInfo{}, err
	}
	if !exists {
		return TenantDatabaseInfo{}, ErrTenantNotFound
	}

	if _, err := s.repo.GetByTenantID(ctx, tenantID); err == nil {
		return TenantDatabaseInfo{}, ErrAlreadyExists
	} else if !errors.Is(err, ErrRecordNotFound) {
		return TenantDatabaseInfo{}, err
	}

	name := databaseName
	if name == "" {
		name = tenantdb.DeriveDatabaseName(tenantID.String())
	}

	rec, err := s.repo.Create(ctx, NewTenantDatabase(tenantID, name))
	if err != nil {
		return TenantDatabaseInfo{}, err
	}

	rec, err = s.runPhysicalCreate(ctx, rec)
	if err != nil {
		return TenantDatabaseInfo{}, err
	}

	return TenantDatabaseInfo{Record: rec, ConnectionURL: s.conn.URL(rec.DatabaseName)}, nil
}

// RetryProvisioning re-runs the physical create for a FAILED record. FAILED is
// not terminal; after remediation the record moves back through PROVISIONING.
func (s *Service) RetryProvisioning(ctx context.Context, tenantID uuid.UUID) (TenantDatabaseInfo, error) {
	s.locks.Lock(tenantID)
	defer s.locks.Unlock(tenantID)

	rec, err := s.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return TenantDatabaseInfo{}, err
	}

	ev, err := rec.RetryProvisioning()
	if err != nil {
		return TenantDatabaseInfo{}, err
	}
	if rec, err = s.repo.Update(ctx, rec); err != nil {
		return TenantDatabaseInfo{}, err
	}
	s.events.Publish(ctx, ev)

	rec, err = s.runPhysicalCreate(ctx, rec)
	if err != nil {
		return TenantDatabaseInfo{}, err
	}

	return TenantDatabaseInfo{Record: rec, ConnectionURL: s.conn.URL(rec.DatabaseName)}, nil
}

// runPhysicalCreate issues the idempotent CREATE DATABASE and moves the record
// to ACTIVE. On failure it compensates by marking the record FAILED; if that
// compensation itself fails it is logged and the original error still wins.
func (s *Service) runPhysicalCreate(ctx context.Context, rec TenantDatabase) (TenantDatabase, error) {
	created, err := s.admin.CreateDatabase(ctx, rec.DatabaseName)
	if err != nil {
		physErr := &PhysicalOperationError{Op: "create database " + rec.DatabaseName, Err: err}
		s.compensateToFailed(ctx, rec.TenantID, physErr)
		return TenantDatabase{}, physErr
	}
	if !created {
		s.logger.Info("physical database already present, treating as recovered retry",
			zap.String("tenant_id", rec.TenantID.String()),
			zap.String("database", rec.DatabaseName),
		)
	}

	ev, err := rec.MarkActive()
	if err != nil {
		return TenantDatabase{}, err
	}
	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		s.compensateToFailed(ctx, rec.TenantID, err)
		return TenantDatabase{}, err
	}

	s.events.Publish(ctx, ev)
	s.logger.Info("tenant database provisioned",
		zap.String("tenant_id", rec.TenantID.String()),
		zap.String("database", rec.DatabaseName),
	)
	return updated, nil
}

// DeleteTenantDatabase tears a tenant's database down: cache eviction, backend
// termination, physical drop, then soft-delete of the record. Absent records
// and absent physical databases are tolerated so retries stay idempotent.
func (s *Service) DeleteTenantDatabase(ctx context.Context, tenantID uuid.UUID) error {
	s.locks.Lock(tenantID)
	defer s.locks.Unlock(tenantID)

	rec, err := s.repo.GetByTenantID(ctx, tenantID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !CanDelete(rec.Status) {
		return &PreconditionError{Op: "delete", Status: rec.Status}
	}

	s.cache.Invalidate(tenantID)

	if err := s.admin.TerminateBackends(ctx, rec.DatabaseName); err != nil {
		physErr := &PhysicalOperationError{Op: "terminate backends " + rec.DatabaseName, Err: err}
		s.compensateToFailed(ctx, tenantID, physErr)
		return physErr
	}
	if err := s.admin.DropDatabase(ctx, rec.DatabaseName); err != nil {
		physErr := &PhysicalOperationError{Op: "drop database " + rec.DatabaseName, Err: err}
		s.compensateToFailed(ctx, tenantID, physErr)
		return physErr
	}

	now := time.Now().UTC()
	ev, err := rec.SoftDelete(now)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, rec.ID, now); err != nil {
		return err
	}

	s.events.Publish(ctx, ev)
	s.logger.Info("tenant database deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("database", rec.DatabaseName),
	)
	return nil
}

// RenameTenantDatabase remaps the stored database name. The cache entry is
// evicted before the metadata changes so no in-flight pool can reference the
// old name once the rename completes. Renaming the physical database is the
// caller's responsibility when pairing this with a copy/migration.
func (s *Service) RenameTenantDatabase(ctx context.Context, tenantID uuid.UUID, newName string) error {
	s.locks.Lock(tenantID)
	defer s.locks.Unlock(tenantID)

	rec, err := s.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}

	s.cache.Invalidate(tenantID)

	ev, err := rec.Rename(newName)
	if err != nil {
		return err
	}
	if _, err := s.repo.Update(ctx, rec); err != nil {
		return err
	}

	s.events.Publish(ctx, ev)
	return nil
}

// SuspendTenantDatabase pauses a tenant administratively and drops its cached
// pool so no further connections are served while suspended.
func (s *Service) SuspendTenantDatabase(ctx context.Context, tenantID uuid.UUID) error {
	s.locks.Lock(tenantID)
	defer s.locks.Unlock(tenantID)

	rec, err := s.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}
	ev, err := rec.Suspend()
	if err != nil {
		return err
	}
	if _, err := s.repo.Update(ctx, rec); err != nil {
		return err
	}
	s.cache.Invalidate(tenantID)
	s.events.Publish(ctx, ev)
	return nil
}

// ResumeTenantDatabase reactivates a suspended tenant.
func (s *Service) ResumeTenantDatabase(ctx context.Context, tenantID uuid.UUID) error {
	s.locks.Lock(tenantID)
	defer s.locks.Unlock(tenantID)

	rec, err := s.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}
	ev, err := rec.Resume()
	if err != nil {
		return err
	}
	if _, err := s.repo.Update(ctx, rec); err != nil {
		return err
	}
	s.events.Publish(ctx, ev)
	return nil
}

// GetTenantMigrationStatus reports the lifecycle and schema-version state of a
// tenant's database.
func (s *Service) GetTenantMigrationStatus(ctx context.Context, tenantID uuid.UUID) (MigrationStatus, error) {
	rec, err := s.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return MigrationStatus{}, err
	}
	return MigrationStatus{
		TenantID:        rec.TenantID,
		DatabaseName:    rec.DatabaseName,
		Status:          rec.Status,
		SchemaVersion:   rec.SchemaVersion,
		LastMigrationAt: rec.LastMigrationAt,
		ErrorMessage:    rec.ErrorMessage,
	}, nil
}

// compensateToFailed re-fetches the record and marks it FAILED with the
// original error message. Compensation failures are logged and swallowed so
// the caller always sees the primary error.
func (s *Service) compensateToFailed(ctx context.Context, tenantID uuid.UUID, cause error) {
	rec, err := s.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		s.logger.Error("compensation: refetch lifecycle record",
			zap.String("tenant_id", tenantID.String()),
			zap.NamedError("compensation_error", err),
			zap.NamedError("original_error", cause),
		)
		return
	}

	ev := rec.MarkFailed(cause.Error())
	if _, err := s.repo.Update(ctx, rec); err != nil {
		s.logger.Error("compensation: mark record failed",
			zap.String("tenant_id", tenantID.String()),
			zap.NamedError("compensation_error", err),
			zap.NamedError("original_error", cause),
		)
		return
	}
	s.events.Publish(ctx, ev)
}
