package tiler

import (
	"log/slog"

	"github.com/MeKo-Tech/mosaic/internal/detect"
	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/MeKo-Tech/mosaic/internal/mask"
)

// AttachDetection stores the raw crop-local detection on the crop.
func (c *Crop) AttachDetection(det detect.Detection) {
	c.Raw = det
}

// RemapToCanvas converts the raw crop-local detection into canvas
// coordinates. Boxes get the tile offset added; instance masks are resized
// from tile resolution straight to full canvas resolution with
// nearest-neighbor interpolation. The straight resize (rather than
// compositing the mask at the tile's sub-region) reproduces the established
// behavior of this pipeline; it can misplace masks for heavily overlapping
// tilings.
//
// Masks whose shape does not match the tile are dropped for this crop only;
// boxes, classes and confidences still flow into fusion.
func (c *Crop) RemapToCanvas(canvasWidth, canvasHeight int) {
	boxes := make([]geometry.Box, len(c.Raw.Boxes))
	for i, b := range c.Raw.Boxes {
		boxes[i] = b.Translate(float64(c.Rect.X), float64(c.Rect.Y))
	}

	c.Remapped = detect.Detection{
		Boxes:       boxes,
		Classes:     c.Raw.Classes,
		Confidences: c.Raw.Confidences,
	}

	if !c.Raw.HasMasks() {
		return
	}
	masks := make([]mask.Mask, 0, len(c.Raw.Masks))
	for i, m := range c.Raw.Masks {
		if m.Width() != c.Rect.Width || m.Height() != c.Rect.Height {
			slog.Warn("mask shape mismatch, dropping crop masks",
				"tile", c.Index,
				"mask_index", i,
				"mask_width", m.Width(),
				"mask_height", m.Height(),
				"tile_width", c.Rect.Width,
				"tile_height", c.Rect.Height)
			c.MasksDropped = true
			return
		}
		masks = append(masks, m.Resize(canvasWidth, canvasHeight))
	}
	c.Remapped.Masks = masks
}

// ScaleToOriginal rescales the canvas-frame detection into original-image
// coordinates, reversing the canvas resize. Masks are nearest-neighbor
// resized to the original image shape.
func (c *Crop) ScaleToOriginal(g Grid) {
	sx := g.ScaleToOriginalX()
	sy := g.ScaleToOriginalY()

	for i, b := range c.Remapped.Boxes {
		c.Remapped.Boxes[i] = b.Scale(sx, sy)
	}
	for i, m := range c.Remapped.Masks {
		c.Remapped.Masks[i] = m.Resize(g.SourceWidth, g.SourceHeight)
	}
}
