package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// normalizeTableName trims the input and enforces a lowercase snake_case identifier that is safe to embed in SQL.
func normalizeTableName(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("table name is required")
	}

	if !tableNamePattern.MatchString(trimmed) {
		return "", fmt.Errorf("invalid table name %q: must match ^[a-z][a-z0-9_]*$", trimmed)
	}

	return trimmed, nil
}

// TenantDirectory answers tenant existence lookups against the tenant registry
// table owned by the surrounding application. The control plane only needs to
// know whether a tenant exists before provisioning a database for it.
type TenantDirectory struct {
	pool  *pgxpool.Pool
	table string
}

// NewTenantDirectory creates a directory over the given registry table. The
// table name is interpolated into SQL, so it is validated here rather than at
// query time.
func NewTenantDirectory(pool *pgxpool.Pool, table string) (*TenantDirectory, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = "tenants"
	}
	normalized, err := normalizeTableName(table)
	if err != nil {
		return nil, err
	}
	return &TenantDirectory{pool: pool, table: normalized}, nil
}

// TenantExists reports whether a live tenant row exists for the id.
func (d *TenantDirectory) TenantExists(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", d.table)
	var exists bool
	if err := d.pool.QueryRow(ctx, query, tenantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("tenant lookup: %w", err)
	}
	return exists, nil
}
