package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is a domain event produced by a lifecycle transition. Mutating entity
// operations return events as plain values; the application layer decides
// whether and how to dispatch them.
type Event interface {
	EventName() string
}

// EventPublisher dispatches domain events after the corresponding state has
// been persisted. Implementations must not fail the calling operation.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) {}

// LogPublisher writes each event to the structured log. This is the production
// publisher; an external bus can replace it without touching the services.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a publisher over the given logger.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		panic("log publisher requires logger")
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events ...Event) {
	for _, ev := range events {
		p.logger.Info("domain event",
			zap.String("event", ev.EventName()),
			zap.Any("payload", ev),
		)
	}
}

// DatabaseProvisioned is emitted when a tenant database becomes ACTIVE for the first time.
type DatabaseProvisioned struct {
	TenantID     uuid.UUID
	DatabaseName string
	OccurredAt   time.Time
}

func (DatabaseProvisioned) EventName() string { return "tenantdb.database_provisioned" }

// ProvisioningFailed is emitted when any lifecycle operation lands the record in FAILED.
type ProvisioningFailed struct {
	TenantID     uuid.UUID
	DatabaseName string
	Reason       string
	OccurredAt   time.Time
}

func (ProvisioningFailed) EventName() string { return "tenantdb.provisioning_failed" }

// DatabaseDeleted is emitted when a record is soft-deleted after teardown.
type DatabaseDeleted struct {
	TenantID     uuid.UUID
	DatabaseName string
	OccurredAt   time.Time
}

func (DatabaseDeleted) EventName() string { return "tenantdb.database_deleted" }

// DatabaseRenamed is emitted when the stored database name is remapped.
type DatabaseRenamed struct {
	TenantID uuid.UUID
	OldName  string
	NewName  string
}

func (DatabaseRenamed) EventName() string { return "tenantdb.database_renamed" }

// DatabaseSuspended is emitted on administrative pause.
type DatabaseSuspended struct {
	TenantID uuid.UUID
}

func (DatabaseSuspended) EventName() string { return "tenantdb.database_suspended" }

// DatabaseResumed is emitted when a suspended database is reactivated.
type DatabaseResumed struct {
	TenantID uuid.UUID
}

func (DatabaseResumed) EventName() string { return "tenantdb.database_resumed" }

// MigrationStarted is emitted when a record enters MIGRATING.
type MigrationStarted struct {
	TenantID     uuid.UUID
	DatabaseName string
}

func (MigrationStarted) EventName() string { return "tenantdb.migration_started" }

// MigrationCompleted is emitted when a migration batch finishes and the record
// returns to ACTIVE with a new schema version.
type MigrationCompleted struct {
	TenantID      uuid.UUID
	DatabaseName  string
	SchemaVersion string
	OccurredAt    time.Time
}

func (MigrationCompleted) EventName() string { return "tenantdb.migration_completed" }

// MigrationFailed is emitted when a migration attempt lands the record in FAILED.
type MigrationFailed struct {
	TenantID     uuid.UUID
	DatabaseName string
	Reason       string
	OccurredAt   time.Time
}

func (MigrationFailed) EventName() string { return "tenantdb.migration_failed" }

// ProvisioningRetried is emitted when a FAILED record is put back into PROVISIONING.
type ProvisioningRetried struct {
	TenantID uuid.UUID
}

func (ProvisioningRetried) EventName() string { return "tenantdb.provisioning_retried" }
