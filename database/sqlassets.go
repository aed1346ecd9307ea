// Package sqlassets embeds the SQL shipped with the binaries: the control
// database DDL applied by bootstrap, and the goose migrations applied to every
// tenant database. Embedding keeps the binaries self-contained.
package sqlassets

import "embed"

//go:embed control/tenant_databases.sql
var TenantDatabasesSQL string

//go:embed control/tenants.sql
var TenantsSQL string

//go:embed migrations/tenant/*.sql
var TenantMigrationsFS embed.FS

// TenantMigrationsDir is the path of the tenant migrations inside TenantMigrationsFS.
const TenantMigrationsDir = "migrations/tenant"
