// Package fuse merges the remapped detections of all crops into one
// duplicate-free per-image detection list via non-maximum suppression.
package fuse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/MeKo-Tech/mosaic/internal/mask"
)

// ErrUnknownMetric marks an invalid match-metric configuration.
var ErrUnknownMetric = errors.New("unknown match metric")

// Metric selects the overlap measure used by suppression.
type Metric string

const (
	// MetricIoU is Intersection over Union.
	MetricIoU Metric = "IOU"
	// MetricIoS is Intersection over Smaller: more aggressive at merging a
	// small region fully contained in a larger one.
	MetricIoS Metric = "IOS"
)

// ParseMetric resolves a metric name case-insensitively.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(MetricIoU):
		return MetricIoU, nil
	case string(MetricIoS):
		return MetricIoS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

// Valid reports whether the metric is one of the supported values.
func (m Metric) Valid() bool { return m == MetricIoU || m == MetricIoS }

// boxValue computes the metric for two boxes.
func (m Metric) boxValue(a, b geometry.Box) float64 {
	if m == MetricIoS {
		return geometry.IoS(a, b)
	}
	return geometry.IoU(a, b)
}

// maskValue computes the same metric at the pixel level for two binary
// masks.
func (m Metric) maskValue(a, b mask.Mask) float64 {
	if m == MetricIoS {
		return mask.IoS(a, b)
	}
	return mask.IoU(a, b)
}
