package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/endo-report-server/internal/api"
	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/config"
	"github.com/endo-report-server/internal/logging"
	"github.com/endo-report-server/internal/rewrite"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "endo-report",
		Short:         "Endodontic referral letter server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a configuration file")

	rootCmd.AddCommand(serveCmd(&configFile))
	rootCmd.AddCommand(renderCmd(&configFile))
	rootCmd.AddCommand(rewriteCmd(&configFile))
	rootCmd.AddCommand(auditCmd(&configFile))
	rootCmd.AddCommand(versionCmd())

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runtime holds what every subcommand needs
type runtime struct {
	config *config.Manager
	logger *logrus.Logger
	store  audit.Store
}

// loadRuntime reads configuration and opens the audit store. Commands that
// print to stdout pass quiet so logs move to stderr.
func loadRuntime(configFile string, quiet bool) (*runtime, error) {
	configManager, err := config.NewManager(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configManager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := configManager.GetConfig()
	logCfg := cfg.Logging
	if quiet && (logCfg.Output == "" || logCfg.Output == "stdout") {
		logCfg.Output = "stderr"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := audit.Open(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	return &runtime{config: configManager, logger: logger, store: store}, nil
}

func (r *runtime) gateway() (*rewrite.Gateway, error) {
	return rewrite.NewGeminiGateway(r.config.GetConfig(), r.config.APIKey,
		rewrite.WithRecorder(r.store),
		rewrite.WithLogger(r.logger),
	)
}

func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		r.logger.WithError(err).Warn("Failed to close audit store")
	}
}

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configFile, false)
			if err != nil {
				return err
			}
			defer rt.close()

			gateway, err := rt.gateway()
			if err != nil {
				return err
			}

			server, err := api.NewServer(rt.config, gateway, rt.store, rt.logger)
			if err != nil {
				return err
			}

			if rt.config.APIKey() == "" {
				rt.logger.Warn("No provider credential configured, rewrite requests will fail")
			}

			cfg := rt.config.GetConfig()
			rt.logger.WithFields(logrus.Fields{
				"host":        cfg.Server.Host,
				"port":        cfg.Server.Port,
				"model":       gateway.Model(),
				"environment": cfg.Environment,
			}).Info("Starting endo-report server")

			if err := server.Start(cmd.Context()); err != nil {
				return err
			}

			rt.logger.Info("endo-report server stopped")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), api.Version)
		},
	}
}
