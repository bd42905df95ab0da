package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/utils"
)

var (
	ingestToolName    = "ingest_interaction"
	ingestDescription = "Record an interaction into episodic memory with a novelty score. Higher surprise scores mean the content is more novel relative to recent conversation history."

	logToolName    = "log_interaction"
	logDescription = "Record an interaction into episodic memory using the active conversation for this project. Resolves or creates the conversation automatically."

	retrieveToolName    = "retrieve_memory"
	retrieveDescription = "Semantic search over stored interactions. Returns the most relevant memories for the query text with similarity scores, marking which belong to the current conversation. When auto-ingest is on, the query itself is logged for future recall."
)

// IngestInput represents the input arguments for the ingest tool.
type IngestInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"the conversation this interaction belongs to"`
	Role           string `json:"role" jsonschema:"the speaker role, e.g. user or assistant"`
	Content        string `json:"content" jsonschema:"the interaction text to record"`
}

// IngestOutput represents the output of the ingest tool.
type IngestOutput struct {
	ID             int64   `json:"id"`
	ConversationID string  `json:"conversation_id"`
	SurpriseScore  float64 `json:"surprise_score"`
}

// handleIngest records one scored interaction.
func (s *Server) handleIngest(ctx context.Context, req *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	logger := s.config.Logger

	if input.Content == "" {
		return errorResult("content is required"), IngestOutput{}, nil
	}
	if input.ConversationID == "" {
		return errorResult("conversation_id is required"), IngestOutput{}, nil
	}

	result, err := s.config.Engine.Ingest(ctx, input.ConversationID, input.Role, input.Content)
	if err != nil {
		logger.Error("failed to ingest interaction", zap.Error(err))
		return errorResult("Failed to ingest interaction: %v", err), IngestOutput{}, nil
	}

	output := IngestOutput{
		ID:             result.ID,
		ConversationID: result.ConversationID,
		SurpriseScore:  result.SurpriseScore,
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), IngestOutput{}, nil
	}
	return toolResult, output, nil
}

// LogInput represents the input arguments for the log tool.
type LogInput struct {
	Role    string `json:"role" jsonschema:"the speaker role, e.g. user or assistant"`
	Content string `json:"content" jsonschema:"the interaction text to record"`
}

// handleLog records an interaction under the project's active conversation.
func (s *Server) handleLog(ctx context.Context, req *mcp.CallToolRequest, input LogInput) (*mcp.CallToolResult, IngestOutput, error) {
	logger := s.config.Logger

	if input.Content == "" {
		return errorResult("content is required"), IngestOutput{}, nil
	}

	conversationID, err := s.config.Engine.ResolveConversation(s.config.ProjectPath)
	if err != nil {
		logger.Error("failed to resolve conversation", zap.Error(err))
		return errorResult("Failed to resolve conversation: %v", err), IngestOutput{}, nil
	}

	result, err := s.config.Engine.Ingest(ctx, conversationID, input.Role, input.Content)
	if err != nil {
		logger.Error("failed to log interaction", zap.Error(err))
		return errorResult("Failed to log interaction: %v", err), IngestOutput{}, nil
	}

	output := IngestOutput{
		ID:             result.ID,
		ConversationID: result.ConversationID,
		SurpriseScore:  result.SurpriseScore,
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), IngestOutput{}, nil
	}
	return toolResult, output, nil
}

// RetrieveInput represents the input arguments for the retrieve tool.
type RetrieveInput struct {
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"the current conversation, used to mark results and attribute auto-logged queries (resolved from the project when empty)"`
	Query          string `json:"query" jsonschema:"the search query text to find relevant memories"`
	TopK           int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// RetrieveResult represents a single retrieved memory. Recent is true when
// the memory belongs to the current conversation rather than a past session.
type RetrieveResult struct {
	ID             string  `json:"id"`
	Score          float32 `json:"score"`
	Role           string  `json:"role"`
	ConversationID string  `json:"conversation_id"`
	Recent         bool    `json:"recent"`
	Preview        string  `json:"preview"`
}

// RetrieveOutput represents the output of the retrieve tool.
type RetrieveOutput struct {
	Query   string           `json:"query"`
	Results []RetrieveResult `json:"results"`
	Count   int              `json:"count"`
}

// handleRetrieve runs a semantic search over stored interactions.
func (s *Server) handleRetrieve(ctx context.Context, req *mcp.CallToolRequest, input RetrieveInput) (*mcp.CallToolResult, RetrieveOutput, error) {
	logger := s.config.Logger

	topK := input.TopK
	if topK <= 0 {
		topK = 5
	}

	conversationID := input.ConversationID
	if conversationID == "" {
		id, err := s.config.Engine.ResolveConversation(s.config.ProjectPath)
		if err != nil {
			logger.Warn("failed to resolve conversation for retrieval", zap.Error(err))
		} else {
			conversationID = id
		}
	}

	logger.Debug("MCP retrieve request",
		zap.String("query", input.Query),
		zap.String("conversation_id", conversationID),
		zap.Int("topK", topK),
	)

	auto := s.autoIngestSnapshot()
	if auto.enabled && auto.logQueries && conversationID != "" && input.Query != "" {
		if _, err := s.config.Engine.Ingest(ctx, conversationID, "user", input.Query); err != nil {
			logger.Warn("auto-ingest of retrieval query failed", zap.Error(err))
		}
	}

	results, err := s.config.Engine.Retrieve(ctx, input.Query, topK)
	if err != nil {
		logger.Error("failed to retrieve memories", zap.Error(err))
		return errorResult("Failed to retrieve memories: %v", err), RetrieveOutput{}, nil
	}

	retrieved := make([]RetrieveResult, 0, len(results))
	previews := make([]string, 0, len(results))
	for _, r := range results {
		preview := utils.Truncate(r.Content, 200)
		retrieved = append(retrieved, RetrieveResult{
			ID:             r.ID,
			Score:          r.Score,
			Role:           r.Role,
			ConversationID: r.ConversationID,
			Recent:         r.ConversationID == conversationID,
			Preview:        preview,
		})
		previews = append(previews, preview)
	}

	if auto.enabled && auto.logResponses && conversationID != "" && len(retrieved) > 0 {
		summary := "Memory retrieval: " + utils.Truncate(strings.Join(previews, "\n---\n"), 200)
		if _, err := s.config.Engine.Ingest(ctx, conversationID, "assistant", summary); err != nil {
			logger.Warn("auto-ingest of retrieval summary failed", zap.Error(err))
		}
	}

	output := RetrieveOutput{
		Query:   input.Query,
		Results: retrieved,
		Count:   len(retrieved),
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err), RetrieveOutput{}, nil
	}
	return toolResult, output, nil
}
