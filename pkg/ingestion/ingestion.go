// Package ingestion collects activity from external log sources.
//
// Sources are declared in config: each names a glob of files, a format,
// and field bindings that map source fields onto activity records. A
// source that cannot be read is skipped so one broken log never blocks
// the activity report.
package ingestion

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/config"
)

// Activity is one unit of observed external activity.
type Activity struct {
	// Source is the name of the configured source that produced this record.
	Source string `json:"source"`

	// Project groups activity, typically by repository or working directory.
	Project string `json:"project"`

	// ConversationID is the conversation the activity belongs to, if known.
	ConversationID string `json:"conversation_id,omitempty"`

	// Timestamp is the activity time.
	Timestamp time.Time `json:"timestamp"`

	// Role is the speaker role, if the source records one.
	Role string `json:"role,omitempty"`

	// Content is the activity text.
	Content string `json:"content"`
}

// Collector reads activity from the configured sources.
type Collector struct {
	sources []config.SourceConfig
	logger  *zap.Logger
}

// NewCollector creates a collector over the given sources.
func NewCollector(sources []config.SourceConfig, logger *zap.Logger) *Collector {
	return &Collector{
		sources: sources,
		logger:  logger,
	}
}

// CollectSince gathers activity at or after cutoff from every source,
// newest first. Individual source failures are logged and skipped.
func (c *Collector) CollectSince(cutoff time.Time) []Activity {
	var all []Activity

	for _, src := range c.sources {
		activities, err := c.collectSource(src, cutoff)
		if err != nil {
			c.logger.Warn("skipping activity source",
				zap.String("source", src.Name),
				zap.Error(err),
			)
			continue
		}
		all = append(all, activities...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})

	return all
}

// collectSource expands the source glob and parses every matching file.
func (c *Collector) collectSource(src config.SourceConfig, cutoff time.Time) ([]Activity, error) {
	matches, err := doublestar.FilepathGlob(src.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding glob %q: %w", src.Path, err)
	}

	var out []Activity
	for _, path := range matches {
		activities, err := parseFile(src, path)
		if err != nil {
			// A single unreadable file shouldn't sink the source.
			c.logger.Warn("skipping activity file",
				zap.String("source", src.Name),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		for _, a := range activities {
			if a.Timestamp.Before(cutoff) {
				continue
			}
			out = append(out, a)
		}
	}

	return out, nil
}

// defaultProject derives a project name from the file location when the
// source doesn't bind one.
func defaultProject(path string) string {
	return filepath.Base(filepath.Dir(path))
}
