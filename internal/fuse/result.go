package fuse

import (
	"fmt"

	"github.com/MeKo-Tech/mosaic/internal/detect"
	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/MeKo-Tech/mosaic/internal/mask"
	"github.com/MeKo-Tech/mosaic/internal/tiler"
)

// Config controls the fusion stage.
type Config struct {
	MatchMetric       string  `mapstructure:"match_metric"       yaml:"match_metric"       json:"match_metric"` // "IOU" or "IOS"
	NMSThreshold      float64 `mapstructure:"nms_threshold"      yaml:"nms_threshold"      json:"nms_threshold"`
	IntelligentSorter bool    `mapstructure:"intelligent_sorter" yaml:"intelligent_sorter" json:"intelligent_sorter"`
}

// DefaultConfig returns the default fusion settings.
func DefaultConfig() Config {
	return Config{
		MatchMetric:       string(MetricIoS),
		NMSThreshold:      0.3,
		IntelligentSorter: true,
	}
}

// Validate rejects invalid fusion configurations before any work begins.
func (c Config) Validate() error {
	if _, err := ParseMetric(c.MatchMetric); err != nil {
		return err
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return fmt.Errorf("nms threshold must be in [0,1], got %g", c.NMSThreshold)
	}
	return nil
}

// Result is the fused, de-duplicated per-image detection set, co-indexed
// across all lists, in the order suppression accepted them.
type Result struct {
	Confidences []float64
	Boxes       []geometry.Box
	ClassIDs    []int
	ClassNames  []string
	Masks       []mask.Mask
}

// Len returns the number of surviving detections.
func (r *Result) Len() int { return len(r.Boxes) }

// Fuse aggregates the crops' remapped detections, runs suppression and
// assembles the final result with class names resolved from the class
// table.
func Fuse(crops []*tiler.Crop, classes detect.Classes, cfg Config) (*Result, error) {
	metric, err := ParseMetric(cfg.MatchMetric)
	if err != nil {
		return nil, err
	}

	confidences, boxes, masks, classIDs := Aggregate(crops)

	keep, err := Suppress(confidences, boxes, metric, cfg.NMSThreshold, masks, cfg.IntelligentSorter)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Confidences: make([]float64, 0, len(keep)),
		Boxes:       make([]geometry.Box, 0, len(keep)),
		ClassIDs:    make([]int, 0, len(keep)),
		ClassNames:  make([]string, 0, len(keep)),
	}
	if masks != nil {
		res.Masks = make([]mask.Mask, 0, len(keep))
	}
	for _, i := range keep {
		res.Confidences = append(res.Confidences, confidences[i])
		res.Boxes = append(res.Boxes, boxes[i])
		res.ClassIDs = append(res.ClassIDs, classIDs[i])
		res.ClassNames = append(res.ClassNames, classes.Name(classIDs[i]))
		if masks != nil {
			res.Masks = append(res.Masks, masks[i])
		}
	}
	return res, nil
}
