// Package mcp provides an MCP (Model Context Protocol) server for the Spool memory engine.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/engine"
	"github.com/papercomputeco/spool/pkg/utils"
)

type Config struct {
	// Engine is the memory engine every tool operates on
	Engine *engine.Engine

	// ProjectPath keys the conversation registry for this server instance
	ProjectPath string

	// AutoIngest seeds the automatic capture switches for retrieval traffic
	AutoIngest config.AutoIngestConfig

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured zap logger
	Logger *zap.Logger
}

// autoIngestSettings is the runtime view of the auto-ingest switches,
// mutable through the configure_auto_ingest tool.
type autoIngestSettings struct {
	enabled      bool
	logQueries   bool
	logResponses bool
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler

	autoMu     sync.Mutex
	autoIngest autoIngestSettings
}

// NewServer creates a new MCP server with the memory tool set.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
		autoIngest: autoIngestSettings{
			enabled:      c.AutoIngest.IsEnabled(),
			logQueries:   c.AutoIngest.QueriesLogged(),
			logResponses: c.AutoIngest.ResponsesLogged(),
		},
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "spool",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	// Memory tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        ingestToolName,
		Description: ingestDescription,
	}, s.handleIngest)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        logToolName,
		Description: logDescription,
	}, s.handleLog)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        retrieveToolName,
		Description: retrieveDescription,
	}, s.handleRetrieve)

	// Knowledge graph tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        addNodeToolName,
		Description: addNodeDescription,
	}, s.handleAddNode)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        addEdgeToolName,
		Description: addEdgeDescription,
	}, s.handleAddEdge)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        traverseToolName,
		Description: traverseDescription,
	}, s.handleTraverse)

	// Maintenance tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        consolidateToolName,
		Description: consolidateDescription,
	}, s.handleConsolidate)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        reconcileToolName,
		Description: reconcileDescription,
	}, s.handleReconcile)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        snapshotToolName,
		Description: snapshotDescription,
	}, s.handleSnapshot)

	// Conversation tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        resolveConversationToolName,
		Description: resolveConversationDescription,
	}, s.handleResolveConversation)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        startConversationToolName,
		Description: startConversationDescription,
	}, s.handleStartConversation)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        activityToolName,
		Description: activityDescription,
	}, s.handleActivity)

	// Auto-ingest tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        configureAutoIngestToolName,
		Description: configureAutoIngestDescription,
	}, s.handleConfigureAutoIngest)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        autoIngestStatusToolName,
		Description: autoIngestStatusDescription,
	}, s.handleAutoIngestStatus)

	s.addResources(mcpServer)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// errorResult wraps a failure message into an IsError tool result.
// Failures cross the protocol boundary as results, never as panics.
func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// jsonResult serializes structured output into the TextContent mirror.
// Per MCP spec: tools returning structured content should also return
// serialized JSON in a TextContent block for backwards compatibility.
func jsonResult(output any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool output: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, nil
}
