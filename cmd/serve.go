package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/store"
	"github.com/kozaktomas/face-recognizer/internal/store/memory"
	"github.com/kozaktomas/face-recognizer/internal/store/postgres"
	"github.com/kozaktomas/face-recognizer/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reference recognition service",
	Long: `Start the HTTP recognition service the client commands talk to.

Users are stored in PostgreSQL (pgvector) when DATABASE_URL is set.
Otherwise an in-memory HNSW index is used, persisted to HNSW_INDEX_PATH
on shutdown when that is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Float64("threshold", 0.6, "Minimum confidence for a match (overrides RECOGNITION_THRESHOLD)")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "Extra CORS origin; repeatable")
}

// openStore picks the storage backend from the database config.
func openStore(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (store.Store, error) {
	if cfg.URL != "" {
		logger.Info("using PostgreSQL store")
		st, err := postgres.Open(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL store: %w", err)
		}
		return st, nil
	}

	st, err := memory.Open(cfg.HNSWIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory store: %w", err)
	}
	count, _ := st.CountUsers(ctx)
	logger.Info("using in-memory store",
		zap.String("index_path", cfg.HNSWIndexPath),
		zap.Int("users", count),
	)
	return st, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Server.RecognitionThreshold = mustGetFloat64(cmd, "threshold")
	}
	if origins := mustGetStringSlice(cmd, "allowed-origin"); len(origins) > 0 {
		cfg.Server.AllowedOrigins = strings.Join(append(cfg.Server.Origins(), origins...), ",")
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store failed", zap.Error(err))
		}
	}()

	server := web.NewServer(&cfg.Server, st, Version, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	fmt.Printf("Recognition service listening on http://%s\n", cfg.Server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
