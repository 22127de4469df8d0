package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/figprep/figprep/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the preparation API",
	Long: `Start an HTTP server that provides REST API endpoints for document
preparation.

The server provides the following endpoints:
  POST /api/parse  - Prepare an uploaded PDF and return hints and figures
  GET  /api/health - Health check endpoint
  GET  /ws/parse   - WebSocket variant streaming per-page progress
  GET  /metrics    - Prometheus metrics

Examples:
  figprep serve
  figprep serve --port 8080
  figprep serve --host 0.0.0.0 --port 3000`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	serverConfig := cfg.ToServerConfig()

	if cmd.Flags().Changed("host") {
		serverConfig.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		serverConfig.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("cors-origin") {
		serverConfig.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	if cmd.Flags().Changed("max-upload-size") {
		v, _ := cmd.Flags().GetInt("max-upload-size")
		serverConfig.MaxUploadMB = int64(v)
	}
	if cmd.Flags().Changed("timeout") {
		serverConfig.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("output-dir") {
		serverConfig.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("dpi") {
		v, _ := cmd.Flags().GetInt("dpi")
		serverConfig.Pipeline.Raster.DPI = v
		serverConfig.Pipeline.OCR.DPI = v
	}
	if cmd.Flags().Changed("ocr-binary") {
		serverConfig.Pipeline.OCR.Binary, _ = cmd.Flags().GetString("ocr-binary")
	}
	if cmd.Flags().Changed("languages") {
		serverConfig.Pipeline.OCR.Languages, _ = cmd.Flags().GetString("languages")
	}
	if cmd.Flags().Changed("workers") {
		serverConfig.Pipeline.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("rate-limit-enabled") {
		serverConfig.RateLimit.Enabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
	}
	if cmd.Flags().Changed("requests-per-minute") {
		serverConfig.RateLimit.RequestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
	}
	if cmd.Flags().Changed("max-data-per-day") {
		serverConfig.RateLimit.MaxDataPerDay, _ = cmd.Flags().GetInt64("max-data-per-day")
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}

	if serverConfig.Port < 1 || serverConfig.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", serverConfig.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	parseServer, err := server.NewServer(ctx, serverConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	parseServer.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(serverConfig.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(serverConfig.TimeoutSec) * time.Second,
	}

	go func() {
		slog.Info("Starting preparation server", "host", serverConfig.Host, "port", serverConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("output-dir", "", "directory for parse artifacts (empty disables writing)")
	serveCmd.Flags().Int("dpi", 400, "rasterization resolution")
	serveCmd.Flags().Int("workers", 0, "per-page worker pool size (0=NumCPU)")
	serveCmd.Flags().String("ocr-binary", "tesseract", "tesseract binary path")
	serveCmd.Flags().StringP("languages", "l", "eng", "OCR language packs")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 30, "maximum requests per minute per client")
	serveCmd.Flags().Int64("max-data-per-day", 500*1024*1024, "maximum data processed per day per client (bytes)")
}
