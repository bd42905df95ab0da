package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/utils"
)

var (
	resolveConversationToolName    = "resolve_conversation"
	resolveConversationDescription = "Return the active conversation for this project without recording anything. Creates and stores a fresh one only if the project has none yet."

	startConversationToolName    = "start_new_conversation"
	startConversationDescription = "Rotate the active conversation for this project. Subsequent logged interactions land in the fresh conversation."

	activityToolName    = "get_recent_activity"
	activityDescription = "Summarize recent activity across episodic memory and configured external sources, grouped by source and project."
)

// ResolveConversationInput represents the input arguments for the resolve conversation tool.
type ResolveConversationInput struct{}

// ResolveConversationOutput represents the output of the resolve conversation tool.
type ResolveConversationOutput struct {
	ConversationID string `json:"conversation_id"`
	ProjectPath    string `json:"project_path"`
}

// handleResolveConversation reports the project's active conversation.
func (s *Server) handleResolveConversation(ctx context.Context, req *mcp.CallToolRequest, input ResolveConversationInput) (*mcp.CallToolResult, ResolveConversationOutput, error) {
	logger := s.config.Logger

	id, err := s.config.Engine.ResolveConversation(s.config.ProjectPath)
	if err != nil {
		logger.Error("failed to resolve conversation", zap.Error(err))
		return errorResult("Failed to resolve conversation: %v", err), ResolveConversationOutput{}, nil
	}

	output := ResolveConversationOutput{
		ConversationID: id,
		ProjectPath:    s.config.ProjectPath,
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), ResolveConversationOutput{}, nil
	}
	return toolResult, output, nil
}

// StartConversationInput represents the input arguments for the start conversation tool.
type StartConversationInput struct{}

// StartConversationOutput represents the output of the start conversation tool.
type StartConversationOutput struct {
	ConversationID string `json:"conversation_id"`
	ProjectPath    string `json:"project_path"`
}

// handleStartConversation assigns a fresh conversation to the project.
func (s *Server) handleStartConversation(ctx context.Context, req *mcp.CallToolRequest, input StartConversationInput) (*mcp.CallToolResult, StartConversationOutput, error) {
	logger := s.config.Logger

	id, err := s.config.Engine.StartConversation(s.config.ProjectPath)
	if err != nil {
		logger.Error("failed to start conversation", zap.Error(err))
		return errorResult("Failed to start conversation: %v", err), StartConversationOutput{}, nil
	}

	output := StartConversationOutput{
		ConversationID: id,
		ProjectPath:    s.config.ProjectPath,
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), StartConversationOutput{}, nil
	}
	return toolResult, output, nil
}

// ActivityInput represents the input arguments for the activity tool.
type ActivityInput struct {
	Hours int `json:"hours,omitempty" jsonschema:"how many hours back to look (default: 24)"`
}

// ActivityItem is one unit of reported activity.
type ActivityItem struct {
	Timestamp string `json:"timestamp"`
	Role      string `json:"role,omitempty"`
	Preview   string `json:"preview"`
}

// ActivityGroupOutput is recent activity for one source and project pair.
type ActivityGroupOutput struct {
	Source  string         `json:"source"`
	Project string         `json:"project"`
	Items   []ActivityItem `json:"items"`
	Total   int            `json:"total"`
}

// ActivityOutput represents the output of the activity tool.
type ActivityOutput struct {
	Since  string                `json:"since"`
	Groups []ActivityGroupOutput `json:"groups"`
}

// handleActivity reports recent activity grouped by source and project.
func (s *Server) handleActivity(ctx context.Context, req *mcp.CallToolRequest, input ActivityInput) (*mcp.CallToolResult, ActivityOutput, error) {
	logger := s.config.Logger

	hours := input.Hours
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	report, err := s.config.Engine.RecentActivity(ctx, since)
	if err != nil {
		logger.Error("failed to collect recent activity", zap.Error(err))
		return errorResult("Failed to collect recent activity: %v", err), ActivityOutput{}, nil
	}

	output := ActivityOutput{
		Since: report.Since.UTC().Format(time.RFC3339),
	}
	for _, g := range report.Groups {
		group := ActivityGroupOutput{
			Source:  g.Source,
			Project: g.Project,
			Total:   g.Total,
		}
		for _, item := range g.Items {
			group.Items = append(group.Items, ActivityItem{
				Timestamp: item.Timestamp.UTC().Format(time.RFC3339),
				Role:      item.Role,
				Preview:   utils.Truncate(item.Content, 200),
			})
		}
		output.Groups = append(output.Groups, group)
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), ActivityOutput{}, nil
	}
	return toolResult, output, nil
}
