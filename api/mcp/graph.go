package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	addNodeToolName    = "add_knowledge_node"
	addNodeDescription = "Create or update a named entity in the knowledge graph. Descriptions accumulate across calls; attributes merge with the latest value winning per key."

	addEdgeToolName    = "add_knowledge_edge"
	addEdgeDescription = "Create a directed, weighted relation between two existing knowledge graph nodes. Both endpoints must already exist."

	traverseToolName    = "traverse_knowledge_graph"
	traverseDescription = "Walk the knowledge graph breadth-first from a starting node up to a depth limit, returning one step per newly reached node."
)

// AddNodeInput represents the input arguments for the add node tool.
type AddNodeInput struct {
	Name        string            `json:"name" jsonschema:"the unique node name"`
	Description string            `json:"description,omitempty" jsonschema:"a description to record for the node"`
	Attributes  map[string]string `json:"attributes,omitempty" jsonschema:"key/value attributes to merge into the node"`
}

// NodeOutput represents a knowledge graph node.
type NodeOutput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Attributes  map[string]string `json:"attributes"`
}

// handleAddNode upserts one knowledge graph node.
func (s *Server) handleAddNode(ctx context.Context, req *mcp.CallToolRequest, input AddNodeInput) (*mcp.CallToolResult, NodeOutput, error) {
	logger := s.config.Logger

	if input.Name == "" {
		return errorResult("name is required"), NodeOutput{}, nil
	}

	node, err := s.config.Engine.Graph().UpsertNode(ctx, input.Name, input.Description, input.Attributes)
	if err != nil {
		logger.Error("failed to upsert knowledge node", zap.Error(err))
		return errorResult("Failed to add knowledge node: %v", err), NodeOutput{}, nil
	}

	output := NodeOutput{
		Name:        node.Name,
		Description: node.Description,
		Attributes:  node.Attributes,
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), NodeOutput{}, nil
	}
	return toolResult, output, nil
}

// AddEdgeInput represents the input arguments for the add edge tool.
type AddEdgeInput struct {
	Source   string  `json:"source" jsonschema:"the source node name"`
	Target   string  `json:"target" jsonschema:"the target node name"`
	Relation string  `json:"relation" jsonschema:"the relation label"`
	Weight   float64 `json:"weight,omitempty" jsonschema:"the edge weight (default: 1.0)"`
}

// EdgeOutput represents a knowledge graph edge.
type EdgeOutput struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// handleAddEdge connects two knowledge graph nodes.
func (s *Server) handleAddEdge(ctx context.Context, req *mcp.CallToolRequest, input AddEdgeInput) (*mcp.CallToolResult, EdgeOutput, error) {
	logger := s.config.Logger

	edge, err := s.config.Engine.Graph().AddEdge(ctx, input.Source, input.Target, input.Relation, input.Weight)
	if err != nil {
		logger.Error("failed to add knowledge edge", zap.Error(err))
		return errorResult("Failed to add knowledge edge: %v", err), EdgeOutput{}, nil
	}

	output := EdgeOutput{
		Source:   edge.Source,
		Target:   edge.Target,
		Relation: edge.Relation,
		Weight:   edge.Weight,
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), EdgeOutput{}, nil
	}
	return toolResult, output, nil
}

// TraverseInput represents the input arguments for the traverse tool.
type TraverseInput struct {
	Start string `json:"start" jsonschema:"the node name to start from"`
	Depth int    `json:"depth,omitempty" jsonschema:"maximum traversal depth in hops (default: 2)"`
}

// TraverseStepOutput is one hop of a traversal.
type TraverseStepOutput struct {
	Source      string `json:"source"`
	Relation    string `json:"relation"`
	Target      string `json:"target"`
	Description string `json:"description"`
}

// TraverseOutput represents the output of the traverse tool.
type TraverseOutput struct {
	Start string               `json:"start"`
	Steps []TraverseStepOutput `json:"steps"`
}

// handleTraverse walks the knowledge graph from a starting node.
func (s *Server) handleTraverse(ctx context.Context, req *mcp.CallToolRequest, input TraverseInput) (*mcp.CallToolResult, TraverseOutput, error) {
	logger := s.config.Logger

	depth := input.Depth
	if depth <= 0 {
		depth = 2
	}

	steps, err := s.config.Engine.Graph().Traverse(ctx, input.Start, depth)
	if err != nil {
		logger.Error("failed to traverse knowledge graph", zap.Error(err))
		return errorResult("Failed to traverse knowledge graph: %v", err), TraverseOutput{}, nil
	}

	output := TraverseOutput{Start: input.Start}
	for _, step := range steps {
		output.Steps = append(output.Steps, TraverseStepOutput{
			Source:      step.Source,
			Relation:    step.Relation,
			Target:      step.Target,
			Description: step.Description,
		})
	}

	toolResult, err := jsonResult(output)
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), TraverseOutput{}, nil
	}
	return toolResult, output, nil
}
