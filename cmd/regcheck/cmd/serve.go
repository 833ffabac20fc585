package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solatis/regcheck/internal/core/api"
	"github.com/solatis/regcheck/internal/core/auth"
	"github.com/solatis/regcheck/internal/core/config"
	"github.com/solatis/regcheck/internal/core/db"
	"github.com/solatis/regcheck/internal/core/server"
	"github.com/solatis/regcheck/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC evaluation service",
	Long: `Serves regcheck.v1.Evaluator over gRPC. The plugin catalogue is read from
the database (see 'regcheck import'); API keys are checked against HMAC
secrets from RC_HMAC_SECRET[_N].`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().Int("workers", 4, "rule evaluation workers per request")
	serveCmd.Flags().Bool("no-auth", false, "serve without API key authentication (local use only)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
	}

	database, queries, err := openDB(cmd, true)
	if err != nil {
		return err
	}
	defer database.Close()

	var authenticator *auth.Authenticator
	if noAuth, _ := cmd.Flags().GetBool("no-auth"); noAuth {
		logger.Warn("API key authentication disabled")
	} else {
		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
		}
		if len(secrets) == 0 {
			return fmt.Errorf("no HMAC secrets configured (set RC_HMAC_SECRET environment variable)")
		}
		authenticator = auth.NewAuthenticator(secrets, queries)
	}

	engine := rules.NewEngine(logger, cfg.Workers)
	service, err := api.NewEvaluatorService(cfg, engine, db.NewStore(queries), logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	if err := service.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load plugin catalogue: %w", err)
	}
	if len(service.Plugins()) == 0 {
		logger.Warn("plugin catalogue is empty; run 'regcheck import' first")
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting regcheck evaluator",
		"version", Version,
		"host", cfg.Host,
		"port", cfg.Port,
		"plugins", service.Plugins(),
	)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(ctx)
	}
}
