package tenantdb

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	sqlassets "github.com/JSisques/saas-boilerplate-sub000/database"
	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/migrate"
	tenantdbrepo "github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/repo"
	tenantdbservice "github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
	platformlogging "github.com/JSisques/saas-boilerplate-sub000/platform/go/logging"
	"github.com/JSisques/saas-boilerplate-sub000/platform/go/persistence"
	platformtenantdb "github.com/JSisques/saas-boilerplate-sub000/platform/go/tenantdb"
)

type options struct {
	controlURL       string
	adminURL         string
	tenantDBHost     string
	tenantDBPort     int
	tenantDBUser     string
	tenantDBPassword string
	tenantDBSSLMode  string
	tenantsTable     string
	concurrency      int
	logLevel         string
}

// Command groups per-tenant database lifecycle operations.
func Command() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "tenantdb",
		Short: "Manage per-tenant databases (provision, migrate, retire)",
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.controlURL, "control-url", "", "PostgreSQL connection string for the control database")
	pf.StringVar(&opts.adminURL, "admin-url", "", "PostgreSQL connection string with CREATEDB privileges")
	pf.StringVar(&opts.tenantDBHost, "tenant-db-host", "localhost", "Host shared by all tenant databases")
	pf.IntVar(&opts.tenantDBPort, "tenant-db-port", 5432, "Port shared by all tenant databases")
	pf.StringVar(&opts.tenantDBUser, "tenant-db-user", "", "User for tenant database connections")
	pf.StringVar(&opts.tenantDBPassword, "tenant-db-password", "", "Password for tenant database connections")
	pf.StringVar(&opts.tenantDBSSLMode, "tenant-db-sslmode", "disable", "sslmode for tenant database connections")
	pf.StringVar(&opts.tenantsTable, "tenants-table", "tenants", "Name of the tenant registry table")
	pf.IntVar(&opts.concurrency, "concurrency", 4, "Parallel tenants for migrate-all")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	_ = cmd.MarkPersistentFlagRequired("control-url")
	_ = cmd.MarkPersistentFlagRequired("admin-url")
	_ = cmd.MarkPersistentFlagRequired("tenant-db-user")
	_ = cmd.MarkPersistentFlagRequired("tenant-db-password")

	cmd.AddCommand(
		createCommand(opts),
		deleteCommand(opts),
		renameCommand(opts),
		statusCommand(opts),
		migrateCommand(opts),
		migrateAllCommand(opts),
		suspendCommand(opts),
		resumeCommand(opts),
		retryCommand(opts),
	)
	return cmd
}

// deps carries the wired control plane for one CLI invocation.
type deps struct {
	svc    *tenantdbservice.Service
	runner *migrate.Runner
	close  func()
}

func build(ctx context.Context, opts *options) (*deps, error) {
	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "tenantdb-cli",
		Level:     opts.logLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: opts.controlURL})
	if err != nil {
		return nil, fmt.Errorf("init control pool: %w", err)
	}

	store, err := persistence.NewTenantDatabaseStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, fmt.Errorf("init tenant database store: %w", err)
	}
	repo := tenantdbrepo.NewPostgresRepository(store)

	directory, err := persistence.NewTenantDirectory(pool, opts.tenantsTable)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, fmt.Errorf("init tenant directory: %w", err)
	}

	adminDB := persistence.NewAdminDB(persistence.AdminConfig{URL: opts.adminURL}, logger)

	conn := platformtenantdb.ConnTemplate{
		Host:     opts.tenantDBHost,
		Port:     opts.tenantDBPort,
		User:     opts.tenantDBUser,
		Password: opts.tenantDBPassword,
		SSLMode:  opts.tenantDBSSLMode,
	}

	cache := platformtenantdb.NewCache(platformtenantdb.CacheConfig{
		Resolver: tenantdbrepo.NewNameResolver(repo),
		Conn:     conn,
		Logger:   logger,
	})

	locks := platformtenantdb.NewLocks()
	events := tenantdbservice.NewLogPublisher(logger)

	svc := tenantdbservice.New(tenantdbservice.Config{
		Repo:    repo,
		Tenants: directory,
		Admin:   adminDB,
		Cache:   cache,
		Conn:    conn,
		Locks:   locks,
		Events:  events,
		Logger:  logger,
	})

	migrations, err := fs.Sub(sqlassets.TenantMigrationsFS, sqlassets.TenantMigrationsDir)
	if err != nil {
		cache.Close()
		persistence.ClosePool(pool)
		return nil, fmt.Errorf("load embedded tenant migrations: %w", err)
	}

	runner := migrate.NewRunner(migrate.RunnerConfig{
		Repo:        repo,
		Pools:       cache,
		Applier:     migrate.NewGooseApplier(migrations),
		Locks:       locks,
		Events:      events,
		Logger:      logger,
		Concurrency: opts.concurrency,
	})

	return &deps{
		svc:    svc,
		runner: runner,
		close: func() {
			cache.Close()
			persistence.ClosePool(pool)
			_ = logger.Sync()
		},
	}, nil
}

func createCommand(opts *options) *cobra.Command {
	var databaseName string

	c := &cobra.Command{
		Use:   "create <tenant-id>",
		Short: "Provision a dedicated database for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			ctx := context.Background()
			d, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer d.close()

			info, err := d.svc.CreateTenantDatabase(ctx, tenantID, databaseName)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Provisioned %s for tenant %s (status %s)\n",
				info.Record.DatabaseName, tenantID, info.Record.Status)
			return nil
		},
	}

	c.Flags().StringVar(&databaseName, "database-name", "", "Explicit database name (derived from tenant id when omitted)")
	return c
}

func deleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tenant-id>",
		Short: "Drop the tenant database and soft-delete its record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			ctx := context.Background()
			d, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer d.close()

			if err := d.svc.DeleteTenantDatabase(ctx, tenantID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted tenant database for %s\n", tenantID)
			return nil
		},
	}
}

func renameCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <tenant-id> <database-name>",
		Short: "Update the recorded database name for a tenant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			ctx := context.Background()
			d, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer d.close()

			if err := d.svc.RenameTenantDatabase(ctx, tenantID, args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Renamed tenant database for %s to %s\n", tenantID, args[1])
			return nil
		},
	}
}

func statusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <tenant-id>",
		Short: "Report migration state for a tenant database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			ctx := context.Background()
			d, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer d.close()

			status, err := d.svc.GetTenantMigrationStatus(ctx, tenantID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tenant:    %s\n", status.TenantID)
			fmt.Fprintf(out, "Database:  %s\n", status.DatabaseName)
			fmt.Fprintf(out, "Status:    %s\n", status.Status)
			if status.SchemaVersion != nil {
				fmt.Fprintf(out, "Version:   %s\n", *status.SchemaVersion)
			}
			if status.LastMigrationAt != nil {
				fmt.Fprintf(out, "Migrated:  %s\n", status.LastMigrationAt.Format("2006-01-02 15:04:05 MST"))
			}
			if status.ErrorMessage != nil {
				fmt.Fprintf(out, "Error:     %s\n", *status.ErrorMessage)
			}
			return nil
		},
	}
}

func migrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <tenant-id>",
		Short: "Run pending migrations against one tenant database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			ctx := context.Background()
			d, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer d.close()

			result := d.runner.MigrateTenant(ctx, tenantID)
			printMigrationResult(cmd, result)
			if result.Err != nil {
				return fmt.Errorf("migration failed for %s", tenantID)
			}
			return nil
		},
	}
}

func migrateAllCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-all",
		Short: "Run pending migrations across every active tenant database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer d.close()

			results, err := d.runner.MigrateAllTenants(ctx)
			if err != nil {
				return err
			}

			failed := 0
			for _, result := range results {
				printMigrationResult(cmd, result)
				if !result.Success {
					failed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tenants, %d failed\n", len(results)-failed, failed)
			if failed > 0 {
				return fmt.Errorf("%d tenant migrations failed", failed)
			}
			return nil
		},
	}
}

func suspendCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "suspend <tenant-id>",
		Short: "Suspend connectivity for a tenant database",
		Args:  cobra.ExactArgs(1),
		RunE:  simpleLifecycleRunE(opts, "Suspended", (*tenantdbservice.Service).SuspendTenantDatabase),
	}
}

func resumeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <tenant-id>",
		Short: "Resume a suspended tenant database",
		Args:  cobra.ExactArgs(1),
		RunE:  simpleLifecycleRunE(opts, "Resumed", (*tenantdbservice.Service).ResumeTenantDatabase),
	}
}

func retryCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <tenant-id>",
		Short: "Retry provisioning for a failed tenant database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			ctx := context.Background()
			d, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer d.close()

			info, err := d.svc.RetryProvisioning(ctx, tenantID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Retried provisioning for %s (status %s)\n", tenantID, info.Record.Status)
			return nil
		},
	}
}

func simpleLifecycleRunE(opts *options, verb string, op func(*tenantdbservice.Service, context.Context, uuid.UUID) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tenantID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid tenant id: %w", err)
		}

		ctx := context.Background()
		d, err := build(ctx, opts)
		if err != nil {
			return err
		}
		defer d.close()

		if err := op(d.svc, ctx, tenantID); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s tenant database for %s\n", verb, tenantID)
		return nil
	}
}

func printMigrationResult(cmd *cobra.Command, result migrate.MigrationResult) {
	out := cmd.OutOrStdout()
	if result.Success {
		fmt.Fprintf(out, "%s: ok (version %s)\n", result.TenantID, result.MigrationVersion)
		return
	}
	fmt.Fprintf(out, "%s: FAILED (%v)\n", result.TenantID, result.Err)
}
