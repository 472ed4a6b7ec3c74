package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mosaic_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Detection metrics
	detectRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_detect_requests_total",
			Help: "Total number of detection requests",
		},
		[]string{"transport", "status"}, // transport: http, websocket
	)

	detectProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mosaic_detect_processing_duration_seconds",
			Help:    "Tiled detection processing duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"transport"},
	)

	cropsProcessed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mosaic_crops_per_image",
			Help:    "Number of crops generated per image",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		},
	)

	detectionsFused = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mosaic_detections_per_image",
			Help:    "Number of detections surviving fusion per image",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	failedCropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mosaic_failed_crops_total",
			Help: "Total number of crops whose inference failed",
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mosaic_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mosaic_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mosaic_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// observeRun records per-run pipeline metrics.
func observeRun(transport string, detections, crops, failed int, seconds float64) {
	detectRequestsTotal.WithLabelValues(transport, "success").Inc()
	detectProcessingDuration.WithLabelValues(transport).Observe(seconds)
	cropsProcessed.Observe(float64(crops))
	detectionsFused.Observe(float64(detections))
	failedCropsTotal.Add(float64(failed))
}
