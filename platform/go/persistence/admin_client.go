package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const defaultAdminOpTimeout = 30 * time.Second

// AdminConfig configures the bootstrap-database client. URL points at the
// admin/bootstrap database, never at a tenant's own database (which may not
// exist yet when CREATE DATABASE runs).
type AdminConfig struct {
	URL       string
	OpTimeout time.Duration
}

// AdminDB runs CREATE DATABASE / DROP DATABASE and backend-termination
// statements. Each operation opens a fresh connection and closes it on every
// exit path, so administrative credentials never live in a long-running pool.
type AdminDB struct {
	cfg    AdminConfig
	logger *zap.Logger
}

// NewAdminDB constructs the admin client.
func NewAdminDB(cfg AdminConfig, logger *zap.Logger) *AdminDB {
	if cfg.URL == "" {
		panic("admin db requires bootstrap connection URL")
	}
	if logger == nil {
		panic("admin db requires logger")
	}
	return &AdminDB{cfg: cfg, logger: logger}
}

// CreateDatabase creates the physical database. Returns false without error
// when the database already exists, since that indicates a recovered retry
// rather than a failure.
func (a *AdminDB) CreateDatabase(ctx context.Context, name string) (bool, error) {
	created := false
	err := a.withConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		var exists bool
		if err := conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
			return fmt.Errorf("check database existence: %w", err)
		}
		if exists {
			a.logger.Info("physical database already exists, continuing", zap.String("database", name))
			return nil
		}

		// CREATE DATABASE cannot run inside a transaction block.
		if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// DropDatabase drops the physical database. An absent database is treated as
// success so teardown stays idempotent under retries.
func (a *AdminDB) DropDatabase(ctx context.Context, name string) error {
	return a.withConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()); err != nil {
			return fmt.Errorf("drop database: %w", err)
		}
		return nil
	})
}

// TerminateBackends kills live backends connected to the database so a
// subsequent DROP DATABASE cannot fail on lingering connections.
func (a *AdminDB) TerminateBackends(ctx context.Context, name string) error {
	return a.withConn(ctx, func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()`, name)
		if err != nil {
			return fmt.Errorf("terminate backends: %w", err)
		}
		return nil
	})
}

// withConn opens a short-lived admin connection with a bounded timeout and
// guarantees it is closed on all exit paths.
func (a *AdminDB) withConn(ctx context.Context, fn func(ctx context.Context, conn *pgx.Conn) error) error {
	timeout := a.cfg.OpTimeout
	if timeout <= 0 {
		timeout = defaultAdminOpTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, a.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = conn.Close(closeCtx)
	}()

	return fn(ctx, conn)
}
