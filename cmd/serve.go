package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/constants"
	"github.com/kozaktomas/sketch-match/internal/matcher"
	"github.com/kozaktomas/sketch-match/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local sketch API",
	Long: `Start the local sketch API used by the proxy backend.

  POST /upload_sketch   search with the "sketch" multipart part
  GET  /{imageID}       gallery photo <GALLERY_PREFIX><imageID>
  GET  /api/v1/health   health check
  GET  /metrics         Prometheus metrics

The server searches with S3 and Rekognition, so it needs the direct backend
configuration.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT or 5000)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST or 0.0.0.0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(config.BackendDirect)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals

	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := newAWSServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create AWS clients", zap.Error(err))
		return err
	}
	defer svc.Close()

	backend := matcher.NewDirectBackend(cfg, svc.store, svc.recognizer, svc.registryReader(), logger)
	server := web.NewServer(cfg, backend, svc.store, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ServerShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting sketch API on http://%s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
