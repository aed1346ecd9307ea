package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the control-plane admin CLI. Subcommands (bootstrap, tenantdb) are attached here.
var rootCmd = &cobra.Command{
	Use:           "tenantdbctl",
	Short:         "Tenant database control-plane CLI",
	Long:          "Administrative utilities for the tenant database control plane (bootstrap, provisioning, migrations).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
