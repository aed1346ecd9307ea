package service

import (
	"time"

	"github.com/google/uuid"
)

// TenantDatabase is the lifecycle record for one tenant's physical database.
// The connection URL (credentials, host) is deliberately never stored here;
// only the database name is persisted and the URL is rebuilt on demand.
type TenantDatabase struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	DatabaseName    string
	Status          Status
	SchemaVersion   *string
	LastMigrationAt *time.Time
	ErrorMessage    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// NewTenantDatabase builds a fresh record in PROVISIONING, the only legal
// initial state. The physical database does not exist yet at this point.
func NewTenantDatabase(tenantID uuid.UUID, databaseName string) TenantDatabase {
	now := time.Now().UTC()
	return TenantDatabase{
		ID:           uuid.New(),
		TenantID:     tenantID,
		DatabaseName: databaseName,
		Status:       StatusProvisioning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Deleted reports whether the record has been soft-deleted.
func (r *TenantDatabase) Deleted() bool {
	return r.DeletedAt != nil
}

// MarkActive transitions PROVISIONING -> ACTIVE once the physical database
// has been created.
func (r *TenantDatabase) MarkActive() (Event, error) {
	if r.Status != StatusProvisioning {
		return nil, &PreconditionError{Op: "mark active", Status: r.Status}
	}
	r.Status = StatusActive
	r.ErrorMessage = nil
	r.touch()
	return DatabaseProvisioned{TenantID: r.TenantID, DatabaseName: r.DatabaseName, OccurredAt: r.UpdatedAt}, nil
}

// MarkFailed transitions any non-terminal state to FAILED and records the
// reason. errorMessage is non-nil exactly while the record is FAILED.
func (r *TenantDatabase) MarkFailed(reason string) Event {
	r.Status = StatusFailed
	r.ErrorMessage = &reason
	r.touch()
	return ProvisioningFailed{TenantID: r.TenantID, DatabaseName: r.DatabaseName, Reason: reason, OccurredAt: r.UpdatedAt}
}

// FailMigration transitions to FAILED after a migration attempt and records
// the reason. Same invariants as MarkFailed; the emitted event names the
// migration as the failing operation.
func (r *TenantDatabase) FailMigration(reason string) Event {
	r.Status = StatusFailed
	r.ErrorMessage = &reason
	r.touch()
	return MigrationFailed{TenantID: r.TenantID, DatabaseName: r.DatabaseName, Reason: reason, OccurredAt: r.UpdatedAt}
}

// RetryProvisioning puts a FAILED record back into PROVISIONING so the
// physical step can be re-attempted.
func (r *TenantDatabase) RetryProvisioning() (Event, error) {
	if r.Status != StatusFailed {
		return nil, &PreconditionError{Op: "retry provisioning", Status: r.Status}
	}
	r.Status = StatusProvisioning
	r.ErrorMessage = nil
	r.touch()
	return ProvisioningRetried{TenantID: r.TenantID}, nil
}

// BeginMigration transitions ACTIVE -> MIGRATING. Migrating a non-active
// record is a caller bug, not a transient condition.
func (r *TenantDatabase) BeginMigration() (Event, error) {
	if r.Status != StatusActive {
		return nil, &PreconditionError{Op: "begin migration", Status: r.Status}
	}
	r.Status = StatusMigrating
	r.touch()
	return MigrationStarted{TenantID: r.TenantID, DatabaseName: r.DatabaseName}, nil
}

// CompleteMigration transitions MIGRATING -> ACTIVE and stamps schemaVersion
// and lastMigrationAt together; they are never set independently.
func (r *TenantDatabase) CompleteMigration(version string, at time.Time) (Event, error) {
	if r.Status != StatusMigrating {
		return nil, &PreconditionError{Op: "complete migration", Status: r.Status}
	}
	r.Status = StatusActive
	r.SchemaVersion = &version
	r.LastMigrationAt = &at
	r.touch()
	return MigrationCompleted{TenantID: r.TenantID, DatabaseName: r.DatabaseName, SchemaVersion: version, OccurredAt: at}, nil
}

// FinishMigrationNoop transitions MIGRATING -> ACTIVE without touching
// schemaVersion or lastMigrationAt; used when zero migrations were pending.
func (r *TenantDatabase) FinishMigrationNoop() error {
	if r.Status != StatusMigrating {
		return &PreconditionError{Op: "finish migration", Status: r.Status}
	}
	r.Status = StatusActive
	r.touch()
	return nil
}

// Suspend transitions ACTIVE -> SUSPENDED. No physical operations are legal
// while suspended except reactivation.
func (r *TenantDatabase) Suspend() (Event, error) {
	if r.Status != StatusActive {
		return nil, &PreconditionError{Op: "suspend", Status: r.Status}
	}
	r.Status = StatusSuspended
	r.touch()
	return DatabaseSuspended{TenantID: r.TenantID}, nil
}

// Resume transitions SUSPENDED -> ACTIVE.
func (r *TenantDatabase) Resume() (Event, error) {
	if r.Status != StatusSuspended {
		return nil, &PreconditionError{Op: "resume", Status: r.Status}
	}
	r.Status = StatusActive
	r.touch()
	return DatabaseResumed{TenantID: r.TenantID}, nil
}

// Rename remaps the stored database name. The physical database is not
// renamed here; callers pair this with an explicit copy/migration.
func (r *TenantDatabase) Rename(newName string) (Event, error) {
	if r.Deleted() {
		return nil, &PreconditionError{Op: "rename", Status: r.Status}
	}
	old := r.DatabaseName
	r.DatabaseName = newName
	r.touch()
	return DatabaseRenamed{TenantID: r.TenantID, OldName: old, NewName: newName}, nil
}

// SoftDelete marks the record deleted. Only ACTIVE, FAILED or SUSPENDED
// records may be torn down.
func (r *TenantDatabase) SoftDelete(at time.Time) (Event, error) {
	if !CanDelete(r.Status) {
		return nil, &PreconditionError{Op: "delete", Status: r.Status}
	}
	r.DeletedAt = &at
	r.touch()
	return DatabaseDeleted{TenantID: r.TenantID, DatabaseName: r.DatabaseName, OccurredAt: at}, nil
}

func (r *TenantDatabase) touch() {
	r.UpdatedAt = time.Now().UTC()
}
