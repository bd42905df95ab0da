package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/api/mcp"
	"github.com/papercomputeco/spool/pkg/engine"
)

// Server is the API server exposing the memory engine over MCP.
type Server struct {
	config Config
	engine *engine.Engine
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The engine is injected so the CLI
// and the server share one set of stores.
func NewServer(config Config, eng *engine.Engine, mcpServer *mcp.Server, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: eng,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	// MCP speaks plain net/http; bridge it into fiber.
	mcpHandler := adaptor.HTTPHandler(mcpServer.Handler())
	app.All("/mcp", mcpHandler)
	app.All("/mcp/*", mcpHandler)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
