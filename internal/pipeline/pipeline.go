// Package pipeline wires tiling, per-crop inference and fusion into the
// single entry point for large-image object detection.
package pipeline

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/mosaic/internal/detect"
	"github.com/MeKo-Tech/mosaic/internal/fuse"
	"github.com/MeKo-Tech/mosaic/internal/tiler"
)

// Config holds configuration for the whole detection pipeline.
type Config struct {
	Tiling    tiler.Config  `mapstructure:"tiling"    yaml:"tiling"    json:"tiling"`
	Inference detect.Params `mapstructure:"inference" yaml:"inference" json:"inference"`
	Fusion    fuse.Config   `mapstructure:"fusion"    yaml:"fusion"    json:"fusion"`
	// Workers bounds the number of crops inferred concurrently
	// (0 = runtime.NumCPU()).
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// DefaultConfig returns a pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Tiling:    tiler.DefaultConfig(),
		Inference: detect.DefaultParams(),
		Fusion:    fuse.DefaultConfig(),
		Workers:   runtime.NumCPU(),
	}
}

// Validate rejects invalid configurations before any tiling work begins.
func (c Config) Validate() error {
	if err := c.Tiling.Validate(); err != nil {
		return fmt.Errorf("tiling: %w", err)
	}
	if err := c.Inference.Validate(); err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	if err := c.Fusion.Validate(); err != nil {
		return fmt.Errorf("fusion: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg      Config
	detector detect.Detector
	classes  detect.Classes
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig(), classes: detect.DefaultClasses()}
}

// WithDetector sets the detection model the pipeline runs per crop.
func (b *Builder) WithDetector(d detect.Detector) *Builder {
	b.detector = d
	return b
}

// WithClasses sets the class-name table.
func (b *Builder) WithClasses(c detect.Classes) *Builder {
	b.classes = c
	return b
}

// WithTiling sets the tile geometry.
func (b *Builder) WithTiling(cfg tiler.Config) *Builder {
	b.cfg.Tiling = cfg
	return b
}

// WithInference sets the per-crop inference parameters.
func (b *Builder) WithInference(params detect.Params) *Builder {
	b.cfg.Inference = params
	return b
}

// WithFusion sets the fusion configuration.
func (b *Builder) WithFusion(cfg fuse.Config) *Builder {
	b.cfg.Fusion = cfg
	return b
}

// WithWorkers bounds per-crop inference concurrency.
func (b *Builder) WithWorkers(n int) *Builder {
	b.cfg.Workers = n
	return b
}

// WithConfig replaces the whole pipeline configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// Build validates the configuration and assembles the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.detector == nil {
		return nil, errors.New("pipeline requires a detector")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: b.cfg, detector: b.detector, classes: b.classes}, nil
}

// Pipeline runs tiled detection over single images.
type Pipeline struct {
	cfg      Config
	detector detect.Detector
	classes  detect.Classes
	progress ProgressFunc
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases the underlying detector.
func (p *Pipeline) Close() error {
	if p.detector != nil {
		return p.detector.Close()
	}
	return nil
}
