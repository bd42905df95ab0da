// Package activitycmder provides the activity command for summarizing
// recent activity across the memory log and configured sources.
package activitycmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/engine"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/utils"
)

type ActivityCommander struct {
	hours     int
	configDir string
	debug     bool
}

const activityLongDesc string = `Show recent activity across the memory log and configured sources.

Scans the episodic log plus every [[sources]] entry declared in
config.toml and prints recent items grouped by source and project,
newest first.

Examples:
  spool activity
  spool activity --hours 72`

const activityShortDesc string = "Show recent activity"

func NewActivityCmd() *cobra.Command {
	cmder := &ActivityCommander{}

	cmd := &cobra.Command{
		Use:   "activity",
		Short: activityShortDesc,
		Long:  activityLongDesc,
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

	cmd.Flags().IntVar(&cmder.hours, "hours", 24, "How many hours back to scan")

	return cmd
}

func (c *ActivityCommander) run() error {
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

	eng, err := engine.Build(cfg, c.configDir, log)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer eng.Close()

	since := time.Now().Add(-time.Duration(c.hours) * time.Hour)
	report, err := eng.RecentActivity(context.Background(), since)
	if err != nil {
		return err
	}

	if len(report.Groups) == 0 {
		fmt.Printf("No activity in the last %dh.\n", c.hours)
		return nil
	}

	fmt.Printf("Activity since %s:\n", report.Since.Local().Format("2006-01-02 15:04"))
	for _, group := range report.Groups {
		fmt.Printf("\n%s / %s (%d items)\n", group.Source, group.Project, group.Total)
		for _, item := range group.Items {
			role := item.Role
			if role == "" {
				role = "-"
			}
			fmt.Printf("  %s  %-9s  %s\n",
				item.Timestamp.Local().Format("15:04:05"),
				role,
				utils.Truncate(item.Content, 80),
			)
		}
	}

	return nil
}
