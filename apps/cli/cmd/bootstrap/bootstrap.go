package bootstrap

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JSisques/saas-boilerplate-sub000/platform/go/persistence"
)

// Command groups bootstrap helpers (control schema init, future seed steps).
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap control-plane resources",
		Long:  "Bootstrap control-plane resources such as the tenant registry and lifecycle tables.",
	}

	cmd.AddCommand(controlCommand())
	return cmd
}

func controlCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "control",
		Short: "Apply the control database DDL (tenants registry, tenant_databases table)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapControlSchema(ctx, pool); err != nil {
				return fmt.Errorf("bootstrap control schema: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Control schema ready.")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string for the control database")
	_ = c.MarkFlagRequired("database-url")

	return c
}
