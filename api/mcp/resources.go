package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	instructionsURI    = "memory://instructions"
	episodicURIPrefix  = "memory://episodic/"
	episodicTemplate   = "memory://episodic/{conversation_id}"
	semanticGraphURI   = "memory://semantic/graph"
	episodicFetchLimit = 100
)

const instructionsText = `Spool is a persistent memory engine for agents.

Recording:
- Use log_interaction to record what happened; the active conversation for
  this project is resolved automatically.
- Use ingest_interaction when you need to target a specific conversation.
- Every recorded interaction gets a surprise score in [0, 1]: 1 means the
  content is entirely novel, 0 means it duplicates recent history.

Recall:
- Use retrieve_memory for semantic search over everything recorded.
  Results from the current conversation are marked recent; when
  auto-ingest is on, queries are logged automatically (see
  configure_auto_ingest and get_auto_ingest_status).
- Use traverse_knowledge_graph to explore distilled, durable facts.
- Use get_recent_activity for a cross-source summary of what happened
  recently.

Maintenance:
- consolidate_memory lists surprising interactions for you to formalize
  with add_knowledge_node, and prunes mundane ones.
- snapshot_memory checkpoints the whole memory state in git.
- reconcile_index repairs the search index if it drifts from the log.
- resolve_conversation reports the project's active conversation;
  start_new_conversation rotates it onto a fresh one.`

// addResources registers the read-only resource surface.
func (s *Server) addResources(mcpServer *mcp.Server) {
	mcpServer.AddResource(&mcp.Resource{
		URI:         instructionsURI,
		Name:        "instructions",
		Description: "How to use the memory engine's tools.",
		MIMEType:    "text/plain",
	}, s.readInstructions)

	mcpServer.AddResource(&mcp.Resource{
		URI:         semanticGraphURI,
		Name:        "semantic_graph",
		Description: "The full knowledge graph as JSON.",
		MIMEType:    "application/json",
	}, s.readSemanticGraph)

	mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: episodicTemplate,
		Name:        "episodic_log",
		Description: "Recent episodic interactions for one conversation as JSON.",
		MIMEType:    "application/json",
	}, s.readEpisodic)
}

func (s *Server) readInstructions(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      instructionsURI,
			MIMEType: "text/plain",
			Text:     instructionsText,
		}},
	}, nil
}

func (s *Server) readSemanticGraph(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	nodes, err := s.config.Engine.Graph().Nodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading graph nodes: %w", err)
	}
	edges, err := s.config.Engine.Graph().Edges(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading graph edges: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"nodes": nodes,
		"edges": edges,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding graph: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      semanticGraphURI,
			MIMEType: "application/json",
			Text:     string(payload),
		}},
	}, nil
}

func (s *Server) readEpisodic(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	conversationID := strings.TrimPrefix(uri, episodicURIPrefix)
	if conversationID == "" || conversationID == uri {
		return nil, fmt.Errorf("invalid episodic resource URI: %s", uri)
	}

	interactions, err := s.config.Engine.Episodic().Recent(ctx, conversationID, episodicFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("reading episodic log: %w", err)
	}

	payload, err := json.Marshal(interactions)
	if err != nil {
		return nil, fmt.Errorf("encoding episodic log: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(payload),
		}},
	}, nil
}
