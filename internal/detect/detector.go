// Package detect defines the object-detection interface the tiling pipeline
// consumes, plus an ONNX Runtime implementation and a deterministic stub.
package detect

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/MeKo-Tech/mosaic/internal/mask"
)

// Detection holds the co-indexed result lists for one inference call: index
// i across Boxes, Classes, Confidences (and Masks when segmentation is
// enabled) describes one detected instance. Boxes are (x1,y1,x2,y2) pixel
// coordinates relative to the image that was passed to Infer.
type Detection struct {
	Boxes       []geometry.Box
	Classes     []int
	Confidences []float64
	Masks       []mask.Mask
}

// Len returns the number of detected instances.
func (d Detection) Len() int { return len(d.Boxes) }

// HasMasks reports whether instance masks are attached.
func (d Detection) HasMasks() bool { return len(d.Masks) > 0 }

// Validate checks the equal-length invariant across the co-indexed lists.
// The mask list may be empty when segmentation is disabled.
func (d Detection) Validate() error {
	n := len(d.Boxes)
	if len(d.Classes) != n || len(d.Confidences) != n {
		return fmt.Errorf("detection lists not co-indexed: %d boxes, %d classes, %d confidences",
			n, len(d.Classes), len(d.Confidences))
	}
	if len(d.Masks) != 0 && len(d.Masks) != n {
		return fmt.Errorf("detection lists not co-indexed: %d boxes, %d masks", n, len(d.Masks))
	}
	return nil
}

// Params carries per-call inference settings.
type Params struct {
	ImageSize     int     `mapstructure:"image_size"     yaml:"image_size"     json:"image_size"`
	ConfThreshold float64 `mapstructure:"conf_threshold" yaml:"conf_threshold" json:"conf_threshold"`
	IoUThreshold  float64 `mapstructure:"iou_threshold"  yaml:"iou_threshold"  json:"iou_threshold"`
	ClassFilter   []int   `mapstructure:"class_filter"   yaml:"class_filter"   json:"class_filter"`
	Segment       bool    `mapstructure:"segment"        yaml:"segment"        json:"segment"`
}

// DefaultParams returns the default inference settings.
func DefaultParams() Params {
	return Params{
		ImageSize:     640,
		ConfThreshold: 0.5,
		IoUThreshold:  0.7,
	}
}

// Validate rejects parameter combinations the detectors cannot honor.
func (p Params) Validate() error {
	if p.ImageSize <= 0 {
		return fmt.Errorf("image size must be positive, got %d", p.ImageSize)
	}
	if p.ConfThreshold < 0 || p.ConfThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %g", p.ConfThreshold)
	}
	if p.IoUThreshold < 0 || p.IoUThreshold > 1 {
		return fmt.Errorf("iou threshold must be in [0,1], got %g", p.IoUThreshold)
	}
	return nil
}

// WantsClass reports whether the class filter admits the given class id. An
// empty filter admits everything.
func (p Params) WantsClass(id int) bool {
	if len(p.ClassFilter) == 0 {
		return true
	}
	for _, c := range p.ClassFilter {
		if c == id {
			return true
		}
	}
	return false
}

// Detector is the model black box: given an image buffer it returns zero or
// more detected instances. Implementations must be safe for concurrent use
// by multiple goroutines, since the pipeline runs crops in parallel.
type Detector interface {
	// Infer runs detection on one image.
	Infer(ctx context.Context, img image.Image, params Params) (Detection, error)
	// Close releases any resources held by the detector.
	Close() error
}
