package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/mosaic/internal/pipeline"
	"github.com/MeKo-Tech/mosaic/internal/version"
	_ "golang.org/x/image/bmp"
)

const formatText = "text"

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// configHandler reports the pipeline configuration in effect.
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		s.writeErrorResponse(w, "Detection pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ConfigResponse{Pipeline: s.pipeline.Config()}); err != nil {
		slog.Error("Failed to encode config response", "error", err)
	}
}

// detectHandler runs tiled detection on an uploaded image.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	if s.pipeline == nil {
		s.writeErrorResponse(w, "Detection pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	res, err := s.pipeline.RunWithProgress(ctx, img, nil)
	if err != nil {
		detectRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}
	observeRun("http", res.Len(), res.Crops, res.FailedCrops, res.ProcessingTime.Seconds())

	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == formatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s.writeTextResponse(w, res)
		return
	}

	out := res.ToStruct()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(DetectResponse{Success: true, Result: &out}); err != nil {
		slog.Error("Failed to encode detect response", "error", err)
	}
}

// writeTextResponse writes a plain text listing of the fused detections.
func (s *Server) writeTextResponse(w http.ResponseWriter, res *pipeline.Result) {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("Source: %dx%d, canvas: %dx%d, crops: %d, failed: %d\n",
		res.SourceWidth, res.SourceHeight, res.CanvasWidth, res.CanvasHeight,
		res.Crops, res.FailedCrops))
	for i, b := range res.Boxes {
		output.WriteString(fmt.Sprintf("#%d %s conf=%.3f box=(%.1f,%.1f)-(%.1f,%.1f)\n",
			i+1, res.ClassNames[i], res.Confidences[i], b.X1, b.Y1, b.X2, b.Y2))
	}

	if _, err := w.Write([]byte(output.String())); err != nil {
		slog.Error("Failed to write text response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(DetectResponse{Success: false, Error: message}); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}
