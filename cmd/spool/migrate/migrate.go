// Package migratecmder provides the migrate command for importing existing
// markdown memory files into the episodic log.
package migratecmder

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/engine"
	"github.com/papercomputeco/spool/pkg/logger"
)

type MigrateCommander struct {
	conversationID string
	role           string
	configDir      string
	debug          bool
}

const defaultConversationID = "migration_import"

// segmentPattern splits markdown on H2+ headers and horizontal rules, the
// common section delimiters in Obsidian and plain note files.
var segmentPattern = regexp.MustCompile(`\n(?:---|##+)\s+`)

const migrateLongDesc string = `Import an existing markdown memory file.

Splits the file into segments on H2/H3 headers and horizontal rules,
then ingests each segment through the full pipeline so every segment
gets a novelty score and lands in both the episodic log and the vector
index.

Examples:
  spool migrate notes.md
  spool migrate notes.md -c project_history -r assistant`

const migrateShortDesc string = "Import a markdown memory file"

func NewMigrateCmd() *cobra.Command {
	cmder := &MigrateCommander{}

	cmd := &cobra.Command{
		Use:   "migrate <file>",
		Short: migrateShortDesc,
		Long:  migrateLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %v", err)
			}
			return cmder.run(args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.conversationID, "conversation-id", "c", defaultConversationID, "Target conversation ID")
	cmd.Flags().StringVarP(&cmder.role, "role", "r", "user", "Role recorded for ingested segments")

	return cmd
}

func (c *MigrateCommander) run(path string) error {
	log := logger.NewLogger(c.debug)
	defer log.Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	segments := splitSegments(string(content))
	if len(segments) == 0 {
		fmt.Printf("No content found in %s.\n", path)
		return nil
	}

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

	fmt.Printf("Migrating %s into conversation %q...\n", path, c.conversationID)

	ctx := context.Background()
	for i, segment := range segments {
		result, err := eng.Ingest(ctx, c.conversationID, c.role, segment)
		if err != nil {
			return fmt.Errorf("ingesting segment %d: %w", i+1, err)
		}
		fmt.Printf("Ingested segment %d (surprise %.3f)\n", i+1, result.SurpriseScore)
	}

	fmt.Printf("Migration complete: %d segments ingested.\n", len(segments))
	return nil
}

// splitSegments breaks markdown content into non-empty trimmed segments.
func splitSegments(content string) []string {
	var segments []string
	for _, part := range segmentPattern.Split(content, -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}
