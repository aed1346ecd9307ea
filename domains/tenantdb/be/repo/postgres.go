package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
	"github.com/JSisques/saas-boilerplate-sub000/platform/go/persistence"
)

const uniqueViolationCode = "23505"

// PostgresRepository implements the lifecycle repository over the control
// database store.
type PostgresRepository struct {
	store *persistence.TenantDatabaseStore
}

// NewPostgresRepository constructs a repository backed by TenantDatabaseStore.
func NewPostgresRepository(store *persistence.TenantDatabaseStore) *PostgresRepository {
	if store == nil {
		panic("tenant database store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, rec service.TenantDatabase) (service.TenantDatabase, error) {
	out, err := r.store.Create(ctx, toStoreRecord(rec))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return service.TenantDatabase{}, service.ErrAlreadyExists
		}
		return service.TenantDatabase{}, err
	}
	return toDomainRecord(out), nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (service.TenantDatabase, error) {
	out, err := r.store.GetByID(ctx, id)
	if err != nil {
		return service.TenantDatabase{}, mapNotFound(err)
	}
	return toDomainRecord(out), nil
}

func (r *PostgresRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (service.TenantDatabase, error) {
	out, err := r.store.GetByTenantID(ctx, tenantID)
	if err != nil {
		return service.TenantDatabase{}, mapNotFound(err)
	}
	return toDomainRecord(out), nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec service.TenantDatabase) (service.TenantDatabase, error) {
	out, err := r.store.Update(ctx, toStoreRecord(rec))
	if err != nil {
		return service.TenantDatabase{}, mapNotFound(err)
	}
	return toDomainRecord(out), nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := r.store.SoftDelete(ctx, id, at); err != nil {
		return mapNotFound(err)
	}
	return nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]service.TenantDatabase, error) {
	rows, err := r.store.ListByStatus(ctx, string(service.StatusActive))
	if err != nil {
		return nil, err
	}
	records := make([]service.TenantDatabase, 0, len(rows))
	for _, row := range rows {
		records = append(records, toDomainRecord(row))
	}
	return records, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrRecordNotFound
	}
	return err
}

func toStoreRecord(rec service.TenantDatabase) persistence.TenantDatabaseRecord {
	return persistence.TenantDatabaseRecord{
		ID:              rec.ID,
		TenantID:        rec.TenantID,
		DatabaseName:    rec.DatabaseName,
		Status:          string(rec.Status),
		SchemaVersion:   rec.SchemaVersion,
		LastMigrationAt: rec.LastMigrationAt,
		ErrorMessage:    rec.ErrorMessage,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		DeletedAt:       rec.DeletedAt,
	}
}

func toDomainRecord(rec persistence.TenantDatabaseRecord) service.TenantDatabase {
	return service.TenantDatabase{
		ID:              rec.ID,
		TenantID:        rec.TenantID,
		DatabaseName:    rec.DatabaseName,
		Status:          service.StatusFromString(rec.Status),
		SchemaVersion:   rec.SchemaVersion,
		LastMigrationAt: rec.LastMigrationAt,
		ErrorMessage:    rec.ErrorMessage,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		DeletedAt:       rec.DeletedAt,
	}
}
