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

	"github.com/MeKo-Tech/mosaic/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the detection API",
	Long: `Start an HTTP server that provides REST and WebSocket endpoints for
tiled object detection.

The server provides the following endpoints:
  POST /detect  - Run tiled detection on an uploaded image
  GET  /health  - Health check endpoint
  GET  /config  - Pipeline configuration in effect
  GET  /metrics - Prometheus metrics
  GET  /ws      - WebSocket endpoint with per-tile progress

Examples:
  mosaic serve --model yolov8n.onnx
  mosaic serve --model yolov8n.onnx --host 0.0.0.0 --port 3000`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyDetectFlags(cmd, cfg)

		flagString(cmd, "host", &cfg.Server.Host)
		flagInt(cmd, "port", &cfg.Server.Port)
		flagString(cmd, "cors-origin", &cfg.Server.CORSOrigin)
		flagInt(cmd, "max-upload-size", &cfg.Server.MaxUploadMB)
		flagInt(cmd, "timeout", &cfg.Server.TimeoutSec)
		flagInt(cmd, "shutdown-timeout", &cfg.Server.ShutdownTimeout)

		if cfg.Model.ModelPath == "" {
			return errors.New("no model provided (use --model or the model.model_path config key)")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		detectServer := server.NewServer(p, server.Config{
			Host:        cfg.Server.Host,
			Port:        cfg.Server.Port,
			CORSOrigin:  cfg.Server.CORSOrigin,
			MaxUploadMB: int64(cfg.Server.MaxUploadMB),
			TimeoutSec:  cfg.Server.TimeoutSec,
		})
		defer func() { _ = detectServer.Close() }()

		mux := http.NewServeMux()
		detectServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.TimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(cfg.Server.TimeoutSec) * time.Second,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			slog.Info("Starting detection server", "host", cfg.Server.Host, "port", cfg.Server.Port)
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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		if err := detectServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")

	serveCmd.Flags().StringP("model", "m", "", "path to the ONNX detection model")
	serveCmd.Flags().String("models-dir", "", "directory searched for relative model paths")
	serveCmd.Flags().Int("num-threads", 0, "intra-op thread count (0 = runtime default)")
	serveCmd.Flags().Bool("gpu", false, "enable CUDA acceleration")
	serveCmd.Flags().Int("gpu-device", 0, "CUDA device id")

	addTilingFlags(serveCmd)
	serveCmd.Flags().Bool("resize-to-original", false,
		"report boxes in original image coordinates instead of canvas coordinates")
	serveCmd.Flags().Int("image-size", 640, "model input size in pixels")
	serveCmd.Flags().Float64("conf", 0.5, "confidence threshold (0..1)")
	serveCmd.Flags().Float64("iou", 0.7, "model-level IoU threshold for per-tile NMS")
	serveCmd.Flags().Bool("segment", false, "enable instance segmentation masks")
	serveCmd.Flags().IntSlice("class-filter", nil, "class ids to keep (empty keeps all)")
	serveCmd.Flags().String("match-metric", "IOS", "fusion overlap metric: IOU or IOS")
	serveCmd.Flags().Float64("nms-threshold", 0.3, "fusion suppression threshold (0..1)")
	serveCmd.Flags().Bool("intelligent-sorter", true,
		"order fusion by rounded confidence, then box area")
	serveCmd.Flags().Int("workers", 0, "concurrent tile inferences (0 = number of CPUs)")
}
