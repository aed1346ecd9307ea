package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantDatabasesTable is the control-database table tracking tenant database lifecycles.
const TenantDatabasesTable = "tenant_databases"

const tenantDatabaseColumns = `id, tenant_id, database_name, status, schema_version,
        last_migration_at, error_message, created_at, updated_at, deleted_at`

// TenantDatabaseRecord is a row of the tenant_databases control table. Note
// that no connection details are stored; only the database name.
type TenantDatabaseRecord struct {
	ID              uuid.UUID  `db:"id"`
	TenantID        uuid.UUID  `db:"tenant_id"`
	DatabaseName    string     `db:"database_name"`
	Status          string     `db:"status"`
	SchemaVersion   *string    `db:"schema_version"`
	LastMigrationAt *time.Time `db:"last_migration_at"`
	ErrorMessage    *string    `db:"error_message"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at"`
}

// TenantDatabaseStore provides access to the tenant_databases table.
type TenantDatabaseStore struct {
	pool *pgxpool.Pool
}

// NewTenantDatabaseStore creates a store; assumes bootstrap already created the table.
func NewTenantDatabaseStore(pool *pgxpool.Pool) (*TenantDatabaseStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TenantDatabaseStore{pool: pool}, nil
}

// Create inserts a new lifecycle record. A partial unique index on tenant_id
// (WHERE deleted_at IS NULL) enforces at most one live record per tenant.
func (s *TenantDatabaseStore) Create(ctx context.Context, rec TenantDatabaseRecord) (TenantDatabaseRecord, error) {
	if rec.ID == uuid.Nil {
		return TenantDatabaseRecord{}, errors.New("record id is required")
	}
	if rec.TenantID == uuid.Nil {
		return TenantDatabaseRecord{}, errors.New("tenant id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (
            id, tenant_id, database_name, status, schema_version,
            last_migration_at, error_message, created_at, updated_at, deleted_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING %s
    `, TenantDatabasesTable, tenantDatabaseColumns)

	row := s.pool.QueryRow(ctx, query,
		rec.ID, rec.TenantID, rec.DatabaseName, rec.Status, rec.SchemaVersion,
		rec.LastMigrationAt, rec.ErrorMessage, rec.CreatedAt, rec.UpdatedAt, rec.DeletedAt,
	)
	return scanTenantDatabaseRecord(row)
}

// GetByID fetches a record by its opaque identifier, deleted or not.
func (s *TenantDatabaseStore) GetByID(ctx context.Context, id uuid.UUID) (TenantDatabaseRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", tenantDatabaseColumns, TenantDatabasesTable)
	return scanTenantDatabaseRecord(s.pool.QueryRow(ctx, query, id))
}

// GetByTenantID fetches the live (non-deleted) record for a tenant.
func (s *TenantDatabaseStore) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (TenantDatabaseRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant_id = $1 AND deleted_at IS NULL",
		tenantDatabaseColumns, TenantDatabasesTable)
	return scanTenantDatabaseRecord(s.pool.QueryRow(ctx, query, tenantID))
}

// Update rewrites the mutable fields of an existing record.
func (s *TenantDatabaseStore) Update(ctx context.Context, rec TenantDatabaseRecord) (TenantDatabaseRecord, error) {
	query := fmt.Sprintf(`
        UPDATE %s SET
            database_name = $2, status = $3, schema_version = $4,
            last_migration_at = $5, error_message = $6, updated_at = $7, deleted_at = $8
        WHERE id = $1
        RETURNING %s
    `, TenantDatabasesTable, tenantDatabaseColumns)

	row := s.pool.QueryRow(ctx, query,
		rec.ID, rec.DatabaseName, rec.Status, rec.SchemaVersion,
		rec.LastMigrationAt, rec.ErrorMessage, rec.UpdatedAt, rec.DeletedAt,
	)
	return scanTenantDatabaseRecord(row)
}

// SoftDelete stamps deleted_at on the record.
func (s *TenantDatabaseStore) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL",
		TenantDatabasesTable)
	tag, err := s.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListByStatus returns all live records in the given status, oldest first.
func (s *TenantDatabaseStore) ListByStatus(ctx context.Context, status string) ([]TenantDatabaseRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
        WHERE status = $1 AND deleted_at IS NULL
        ORDER BY created_at`, tenantDatabaseColumns, TenantDatabasesTable)

	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TenantDatabaseRecord
	for rows.Next() {
		rec, err := scanTenantDatabaseRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanTenantDatabaseRecord(row pgx.Row) (TenantDatabaseRecord, error) {
	var rec TenantDatabaseRecord
	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.DatabaseName, &rec.Status, &rec.SchemaVersion,
		&rec.LastMigrationAt, &rec.ErrorMessage, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt,
	)
	if err != nil {
		return TenantDatabaseRecord{}, err
	}
	return rec, nil
}
