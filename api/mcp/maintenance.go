package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	consolidateToolName    = "consolidate_memory"
	consolidateDescription = "Consolidate a conversation: list high-surprise interactions as candidates for semantic storage and prune low-surprise ones from episodic memory. Formalize the candidates yourself with add_knowledge_node and add_knowledge_edge."

	reconcileToolName    = "reconcile_index"
	reconcileDescription = "Repair the vector index against the episodic log: reindex missing interactions and remove orphaned index entries."

	snapshotToolName    = "snapshot_memory"
	snapshotDescription = "Record a git checkpoint of the whole memory state so it can be inspected or restored later."
)

// ConsolidateInput represents the input arguments for the consolidate tool.
type ConsolidateInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"the conversation to consolidate"`
}

// PromotedInteraction is one high-surprise candidate for semantic storage.
type PromotedInteraction struct {
	ID            int64   `json:"id"`
	Role          string  `json:"role"`
	Content       string  `json:"content"`
	SurpriseScore float64 `json:"surprise_score"`
}

// ConsolidateOutput represents the output of the consolidate tool.
type ConsolidateOutput struct {
	ConversationID string                `json:"conversation_id"`
	Promoted       []PromotedInteraction `json:"promoted"`
	PrunedCount    int                   `json:"pruned_count"`
}

// handleConsolidate runs one consolidation pass.
func (s *Server) handleConsolidate(ctx context.Context, req *mcp.CallToolRequest, input ConsolidateInput) (*mcp.CallToolResult, ConsolidateOutput, error) {
	logger := s.config.Logger

	if input.ConversationID == "" {
		return errorResult("conversation_id is required"), ConsolidateOutput{}, nil
	}

	result, err := s.config.Engine.Consolidate(ctx, input.ConversationID)
	if err != nil {
		logger.Error("failed to consolidate memory", zap.Error(err))
		return errorResult("Failed to consolidate memory: %v", err), ConsolidateOutput{}, nil
	}

	output := ConsolidateOutput{
		ConversationID: input.ConversationID,
		PrunedCount:    result.PrunedCount,
	}
	for _, in := range result.Promoted {
		output.Promoted = append(output.Promoted, PromotedInteraction{
			ID:            in.ID,
			Role:          in.Role,
			Content:       in.Content,
			SurpriseScore: in.SurpriseScore,
		})
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), ConsolidateOutput{}, nil
	}
	return toolResult, output, nil
}

// ReconcileInput represents the input arguments for the reconcile tool.
type ReconcileInput struct{}

// ReconcileOutput represents the output of the reconcile tool.
type ReconcileOutput struct {
	Reindexed int `json:"reindexed"`
	Removed   int `json:"removed"`
	Skipped   int `json:"skipped"`
}

// handleReconcile repairs the vector index from the episodic log.
func (s *Server) handleReconcile(ctx context.Context, req *mcp.CallToolRequest, input ReconcileInput) (*mcp.CallToolResult, ReconcileOutput, error) {
	logger := s.config.Logger

	result, err := s.config.Engine.Reconcile(ctx)
	if err != nil {
		logger.Error("failed to reconcile index", zap.Error(err))
		return errorResult("Failed to reconcile index: %v", err), ReconcileOutput{}, nil
	}

	output := ReconcileOutput{
		Reindexed: result.Reindexed,
		Removed:   result.Removed,
		Skipped:   result.Skipped,
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), ReconcileOutput{}, nil
	}
	return toolResult, output, nil
}

// SnapshotInput represents the input arguments for the snapshot tool.
type SnapshotInput struct {
	Message string `json:"message,omitempty" jsonschema:"the checkpoint message (a timestamped default is used when empty)"`
}

// SnapshotOutput represents the output of the snapshot tool.
type SnapshotOutput struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	Parent  string `json:"parent,omitempty"`
}

// handleSnapshot records one memory checkpoint.
func (s *Server) handleSnapshot(ctx context.Context, req *mcp.CallToolRequest, input SnapshotInput) (*mcp.CallToolResult, SnapshotOutput, error) {
	logger := s.config.Logger

	cp, err := s.config.Engine.Snapshot(input.Message)
	if err != nil {
		logger.Error("failed to snapshot memory", zap.Error(err))
		return errorResult("Failed to snapshot memory: %v", err), SnapshotOutput{}, nil
	}

	output := SnapshotOutput{
		Hash:    cp.Hash,
		Message: cp.Message,
		Parent:  cp.Parent,
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), SnapshotOutput{}, nil
	}
	return toolResult, output, nil
}
