// Package configcmder provides the config command for managing persistent
// spool configuration stored in the .spool/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent spool configuration.

Configuration is stored as config.toml in the .spool/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.metadata_path, storage.vectors_path,
  api.listen,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  consolidation.promote_threshold, consolidation.prune_threshold,
  consolidation.history_window, consolidation.surprise_window,
  snapshot.author_name, snapshot.author_email

Ingestion sources are declared as [[sources]] tables in the file directly.

Use subcommands to get, set, or list configuration values:
  spool config set <key> <value>    Set a configuration value
  spool config get <key>            Get a configuration value
  spool config list                 List all configuration values

Examples:
  spool config set embedding.model nomic-embed-text
  spool config set consolidation.promote_threshold 0.6
  spool config get vector_store.provider
  spool config list`

const configShortDesc string = "Manage persistent spool configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
