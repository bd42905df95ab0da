// Package spoolcmder
package spoolcmder

import (
	"github.com/spf13/cobra"

	activitycmder "github.com/papercomputeco/spool/cmd/spool/activity"
	configcmder "github.com/papercomputeco/spool/cmd/spool/config"
	initcmder "github.com/papercomputeco/spool/cmd/spool/init"
	migratecmder "github.com/papercomputeco/spool/cmd/spool/migrate"
	servecmder "github.com/papercomputeco/spool/cmd/spool/serve"
	snapshotcmder "github.com/papercomputeco/spool/cmd/spool/snapshot"
)

const spoolLongDesc string = `Spool is a persistent memory engine for your agents.

Run the MCP server and manage memory state:
  spool serve          Run the memory server
  spool init           Initialize a local .spool/ directory
  spool migrate        Import an existing memory file
  spool activity       Show recent activity across sources
  spool snapshot       Checkpoint the memory state
  spool config         Manage persistent configuration`

const spoolShortDesc string = "Spool - Agent Memory"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: spoolShortDesc,
		Long:  spoolLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .spool/ state directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(migratecmder.NewMigrateCmd())
	cmd.AddCommand(activitycmder.NewActivityCmd())
	cmd.AddCommand(snapshotcmder.NewSnapshotCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())

	return cmd
}
