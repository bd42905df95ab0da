// Package initcmder provides the init command for initializing a local .spool
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/snapshot"
)

const (
	dirName = ".spool"

	initialCheckpointMessage = "Initial memory state"
)

const initLongDesc string = `Initialize a new .spool/ directory in the current working directory.

Creates a local .spool/ directory that takes precedence over the default
~/.spool/ directory, writes a default config.toml, and records the first
memory checkpoint.

This is useful for maintaining separate memory state per project or directory.

Examples:
  spool init`

const initShortDesc string = "Initialize a local .spool/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit()
		},
	}

	return cmd
}

func runInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .spool directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("creating configer: %w", err)
	}

	cfg := config.NewDefaultConfig()
	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	snapshots, err := snapshot.NewManager(snapshot.Config{
		Dir:         dir,
		AuthorName:  cfg.Snapshot.AuthorName,
		AuthorEmail: cfg.Snapshot.AuthorEmail,
	}, zap.NewNop())
	if err != nil {
		return fmt.Errorf("initializing snapshot history: %w", err)
	}

	checkpoint, err := snapshots.Checkpoint(initialCheckpointMessage)
	if err != nil {
		return fmt.Errorf("recording initial checkpoint: %w", err)
	}

	fmt.Printf("Initialized .spool directory: %s\n", dir)
	fmt.Printf("Initial checkpoint: %s\n", checkpoint.Hash)
	return nil
}
