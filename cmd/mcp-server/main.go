package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/config"
	"github.com/endo-report-server/internal/logging"
	"github.com/endo-report-server/internal/mcp"
	"github.com/endo-report-server/internal/rewrite"
)

func main() {
	configFile := flag.String("config", "", "Path to a configuration file")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManager(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	// stdout carries the protocol
	logCfg := cfg.Logging
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	store, err := audit.Open(cfg.Audit)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open audit store")
	}
	defer store.Close()

	gateway, err := rewrite.NewGeminiGateway(cfg, configManager.APIKey,
		rewrite.WithRecorder(store),
		rewrite.WithLogger(logger),
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create rewrite gateway")
	}

	mcpServer := mcp.NewServer(cfg, gateway,
		mcp.WithRecorder(store),
		mcp.WithLogger(logger),
	)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mcpServer.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("endo-report MCP server stopped")
}
