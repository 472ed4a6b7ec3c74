// Package server exposes tiled detection over HTTP: a multipart upload
// endpoint, health and metrics, and a WebSocket channel that streams
// per-crop progress.
package server

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/MeKo-Tech/mosaic/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// detectorPipeline is the slice of pipeline behavior the server needs.
type detectorPipeline interface {
	RunWithProgress(ctx context.Context, img image.Image, progress pipeline.ProgressFunc) (*pipeline.Result, error)
	Config() pipeline.Config
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    detectorPipeline
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// DetectResponse wraps a detection run or its failure.
type DetectResponse struct {
	Success bool                 `json:"success"`
	Result  *pipeline.ResultJSON `json:"result,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// ConfigResponse reports the pipeline configuration in effect.
type ConfigResponse struct {
	Pipeline pipeline.Config `json:"pipeline"`
}

// NewServer creates a detection server around an already-built pipeline.
// The server takes ownership and closes the pipeline on Close.
func NewServer(p *pipeline.Pipeline, config Config) *Server {
	return &Server{
		pipeline:    p,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/config", s.corsMiddleware(s.configHandler))
	mux.HandleFunc("/detect", s.corsMiddleware(s.detectHandler))
	mux.HandleFunc("/ws", s.detectWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// requestTimeout returns the per-request processing deadline.
func (s *Server) requestTimeout() time.Duration {
	if s.timeoutSec <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(s.timeoutSec) * time.Second
}
