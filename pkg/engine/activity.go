package engine

import (
	"context"
	"sort"
	"time"

	"github.com/papercomputeco/spool/pkg/ingestion"
)

// activityGroupCap bounds how many items an activity group reports.
const activityGroupCap = 5

// memorySourceName labels activity drawn from the engine's own episodic log.
const memorySourceName = "memory"

// ActivityGroup is recent activity for one source and project pair.
type ActivityGroup struct {
	Source string `json:"source"`

	Project string `json:"project"`

	// Items holds up to activityGroupCap entries, newest first.
	Items []ingestion.Activity `json:"items"`

	// Total is the full count before capping.
	Total int `json:"total"`
}

// ActivityReport is recent activity across the episodic log and every
// configured external source.
type ActivityReport struct {
	Since  time.Time       `json:"since"`
	Groups []ActivityGroup `json:"groups"`
}

// RecentActivity merges the episodic log with external source activity at
// or after since, grouped by source then project.
func (e *Engine) RecentActivity(ctx context.Context, since time.Time) (*ActivityReport, error) {
	var all []ingestion.Activity

	interactions, err := e.episodic.RecentSince(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, in := range interactions {
		all = append(all, ingestion.Activity{
			Source:         memorySourceName,
			Project:        in.ConversationID,
			ConversationID: in.ConversationID,
			Timestamp:      time.Unix(in.Timestamp, 0),
			Role:           in.Role,
			Content:        in.Content,
		})
	}

	if e.collector != nil {
		all = append(all, e.collector.CollectSince(since)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})

	report := &ActivityReport{Since: since}

	index := map[[2]string]int{}
	for _, a := range all {
		key := [2]string{a.Source, a.Project}
		i, ok := index[key]
		if !ok {
			report.Groups = append(report.Groups, ActivityGroup{
				Source:  a.Source,
				Project: a.Project,
			})
			i = len(report.Groups) - 1
			index[key] = i
		}

		report.Groups[i].Total++
		if len(report.Groups[i].Items) < activityGroupCap {
			report.Groups[i].Items = append(report.Groups[i].Items, a)
		}
	}

	return report, nil
}
