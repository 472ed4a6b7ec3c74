// Package tiler slices an oversized image into an overlapping grid of crops
// and remaps per-crop detections back into global image coordinates.
package tiler

import (
	"errors"
	"fmt"
)

// Config controls tile geometry for one tiling run.
type Config struct {
	TileWidth  int  `mapstructure:"tile_width"  yaml:"tile_width"  json:"tile_width"`
	TileHeight int  `mapstructure:"tile_height" yaml:"tile_height" json:"tile_height"`
	OverlapX   int  `mapstructure:"overlap_x"   yaml:"overlap_x"   json:"overlap_x"` // percent of tile width
	OverlapY   int  `mapstructure:"overlap_y"   yaml:"overlap_y"   json:"overlap_y"` // percent of tile height
	// ResizeToOriginal maps fused results back to the un-resized source
	// image instead of the canvas.
	ResizeToOriginal bool `mapstructure:"resize_to_original" yaml:"resize_to_original" json:"resize_to_original"`
}

// DefaultConfig returns the default tiling geometry.
func DefaultConfig() Config {
	return Config{
		TileWidth:        700,
		TileHeight:       700,
		OverlapX:         25,
		OverlapY:         25,
		ResizeToOriginal: false,
	}
}

// Validate rejects configurations that cannot produce a valid grid.
func (c Config) Validate() error {
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		return fmt.Errorf("tile dimensions must be positive, got %dx%d", c.TileWidth, c.TileHeight)
	}
	if c.OverlapX < 0 || c.OverlapX >= 100 || c.OverlapY < 0 || c.OverlapY >= 100 {
		return fmt.Errorf("overlap must be in [0,100), got %d%%/%d%%", c.OverlapX, c.OverlapY)
	}
	return nil
}

// ValidateFor additionally checks the configuration against a concrete
// source image size.
func (c Config) ValidateFor(srcWidth, srcHeight int) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if srcWidth <= 0 || srcHeight <= 0 {
		return errors.New("source image has no pixels")
	}
	if c.TileWidth > srcWidth || c.TileHeight > srcHeight {
		return fmt.Errorf("tile size %dx%d exceeds image size %dx%d",
			c.TileWidth, c.TileHeight, srcWidth, srcHeight)
	}
	return nil
}
