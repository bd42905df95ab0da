// Package servecmder provides the serve command for running the memory server.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/api"
	"github.com/papercomputeco/spool/api/mcp"
	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/engine"
	"github.com/papercomputeco/spool/pkg/logger"
)

type ServeCommander struct {
	listen            string
	vectorProvider    string
	vectorTarget      string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	configDir         string
	debug             bool
	logger            *zap.Logger
}

// serveFlagKeys are the registry keys bound to viper for this command.
var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const serveLongDesc string = `Run the Spool memory server.

Starts the HTTP server exposing the memory engine over MCP at /mcp.
Connect an MCP client to ingest interactions, retrieve memory, and
manage the knowledge graph.

Settings resolve flag > environment (SPOOL_*) > config.toml > default.

Examples:
  spool serve
  spool serve --listen :9000
  SPOOL_EMBEDDING_MODEL=all-minilm spool serve`

const serveShortDesc string = "Run the Spool memory server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}
	fs := config.ServeFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %v", err)
			}
			return cmder.run(cmd, fs)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, fs, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDims)

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command, fs config.FlagSet) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, fs, serveFlagKeys)

	// Structured settings (sources, thresholds, paths) come from the file;
	// scalar settings flow through the viper precedence chain.
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg.API.Listen = v.GetString("api.listen")
	cfg.VectorStore.Provider = v.GetString("vector_store.provider")
	cfg.VectorStore.Target = v.GetString("vector_store.target")
	cfg.Embedding.Provider = v.GetString("embedding.provider")
	cfg.Embedding.Target = v.GetString("embedding.target")
	cfg.Embedding.Model = v.GetString("embedding.model")
	cfg.Embedding.Dimensions = v.GetUint("embedding.dimensions")

	autoEnabled := v.GetBool("auto_ingest.enabled")
	autoQueries := v.GetBool("auto_ingest.log_queries")
	autoResponses := v.GetBool("auto_ingest.log_responses")
	cfg.AutoIngest = config.AutoIngestConfig{
		Enabled:      &autoEnabled,
		LogQueries:   &autoQueries,
		LogResponses: &autoResponses,
	}

	eng, err := engine.Build(cfg, c.configDir, c.logger)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer eng.Close()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Engine:      eng,
		ProjectPath: cwd,
		AutoIngest:  cfg.AutoIngest,
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
	}, eng, mcpServer, c.logger)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 1)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}
