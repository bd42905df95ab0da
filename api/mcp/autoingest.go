package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	configureAutoIngestToolName    = "configure_auto_ingest"
	configureAutoIngestDescription = "Configure automatic memory capture. When enabled, retrieval queries and response summaries are logged into episodic memory without explicit ingest calls."

	autoIngestStatusToolName    = "get_auto_ingest_status"
	autoIngestStatusDescription = "Report the current auto-ingest switches and the project's active conversation, without recording anything."
)

// ConfigureAutoIngestInput represents the input arguments for the configure
// auto-ingest tool. Omitted switches default to on.
type ConfigureAutoIngestInput struct {
	Enabled      *bool `json:"enabled,omitempty" jsonschema:"whether auto-ingest is active (default: true)"`
	LogQueries   *bool `json:"log_queries,omitempty" jsonschema:"whether retrieval queries are logged (default: true)"`
	LogResponses *bool `json:"log_responses,omitempty" jsonschema:"whether retrieval response summaries are logged (default: true)"`
}

// AutoIngestStatusOutput represents the auto-ingest configuration state.
type AutoIngestStatusOutput struct {
	Enabled        bool   `json:"enabled"`
	LogQueries     bool   `json:"log_queries"`
	LogResponses   bool   `json:"log_responses"`
	ConversationID string `json:"conversation_id"`
}

// autoIngestSnapshot returns a consistent copy of the runtime switches.
func (s *Server) autoIngestSnapshot() autoIngestSettings {
	s.autoMu.Lock()
	defer s.autoMu.Unlock()
	return s.autoIngest
}

func boolOrTrue(p *bool) bool {
	return p == nil || *p
}

// handleConfigureAutoIngest updates the auto-ingest switches for this server.
func (s *Server) handleConfigureAutoIngest(ctx context.Context, req *mcp.CallToolRequest, input ConfigureAutoIngestInput) (*mcp.CallToolResult, AutoIngestStatusOutput, error) {
	logger := s.config.Logger

	s.autoMu.Lock()
	s.autoIngest = autoIngestSettings{
		enabled:      boolOrTrue(input.Enabled),
		logQueries:   boolOrTrue(input.LogQueries),
		logResponses: boolOrTrue(input.LogResponses),
	}
	settings := s.autoIngest
	s.autoMu.Unlock()

	logger.Info("auto-ingest configured",
		zap.Bool("enabled", settings.enabled),
		zap.Bool("log_queries", settings.logQueries),
		zap.Bool("log_responses", settings.logResponses),
	)

	output := AutoIngestStatusOutput{
		Enabled:      settings.enabled,
		LogQueries:   settings.logQueries,
		LogResponses: settings.logResponses,
	}
	if id, err := s.config.Engine.ResolveConversation(s.config.ProjectPath); err == nil {
		output.ConversationID = id
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), AutoIngestStatusOutput{}, nil
	}
	return toolResult, output, nil
}

// AutoIngestStatusInput represents the input arguments for the status tool.
type AutoIngestStatusInput struct{}

// handleAutoIngestStatus reports the current auto-ingest configuration.
func (s *Server) handleAutoIngestStatus(ctx context.Context, req *mcp.CallToolRequest, input AutoIngestStatusInput) (*mcp.CallToolResult, AutoIngestStatusOutput, error) {
	logger := s.config.Logger

	settings := s.autoIngestSnapshot()

	id, err := s.config.Engine.ResolveConversation(s.config.ProjectPath)
	if err != nil {
		logger.Error("failed to resolve conversation", zap.Error(err))
		return errorResult("Failed to resolve conversation: %v", err), AutoIngestStatusOutput{}, nil
	}

	output := AutoIngestStatusOutput{
		Enabled:        settings.enabled,
		LogQueries:     settings.logQueries,
		LogResponses:   settings.logResponses,
		ConversationID: id,
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), AutoIngestStatusOutput{}, nil
	}
	return toolResult, output, nil
}
