// Package snapshotcmder provides the snapshot command for checkpointing
// the memory state.
package snapshotcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/snapshot"
)

type SnapshotCommander struct {
	message   string
	history   int
	configDir string
	debug     bool
}

const snapshotLongDesc string = `Checkpoint the memory state.

Records a git commit of the .spool/ directory contents so the full
memory state can be inspected or restored later. Empty checkpoints are
allowed so a snapshot always succeeds.

Examples:
  spool snapshot
  spool snapshot -m "before migration"
  spool snapshot --history 10`

const snapshotShortDesc string = "Checkpoint the memory state"

func NewSnapshotCmd() *cobra.Command {
	cmder := &SnapshotCommander{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: snapshotShortDesc,
		Long:  snapshotLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %v", err)
			}
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.message, "message", "m", "", "Checkpoint message")
	cmd.Flags().IntVar(&cmder.history, "history", 0, "List the most recent checkpoints instead of creating one")

	return cmd
}

func (c *SnapshotCommander) run() error {
	log := logger.NewLogger(c.debug)
	defer log.Sync()

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	stateRoot, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving state root: %w", err)
	}

	snapshots, err := snapshot.NewManager(snapshot.Config{
		Dir:         stateRoot,
		AuthorName:  cfg.Snapshot.AuthorName,
		AuthorEmail: cfg.Snapshot.AuthorEmail,
	}, log)
	if err != nil {
		return fmt.Errorf("opening snapshot history: %w", err)
	}

	if c.history > 0 {
		return c.printHistory(snapshots)
	}

	message := c.message
	if message == "" {
		message = "Memory snapshot " + time.Now().UTC().Format(time.RFC3339)
	}

	checkpoint, err := snapshots.Checkpoint(message)
	if err != nil {
		return err
	}

	fmt.Printf("Checkpoint %s: %s\n", shortHash(checkpoint.Hash), checkpoint.Message)
	return nil
}

func (c *SnapshotCommander) printHistory(snapshots *snapshot.Manager) error {
	checkpoints, err := snapshots.History(c.history)
	if err != nil {
		return err
	}

	if len(checkpoints) == 0 {
		fmt.Println("No checkpoints recorded.")
		return nil
	}

	for _, cp := range checkpoints {
		fmt.Printf("%s  %s  %s\n",
			shortHash(cp.Hash),
			cp.When.Local().Format("2006-01-02 15:04:05"),
			cp.Message,
		)
	}
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
