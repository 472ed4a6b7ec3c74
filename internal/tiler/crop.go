package tiler

import (
	"errors"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/mosaic/internal/detect"
	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/disintegration/imaging"
)

// Crop is one tile of the canvas together with its position metadata and,
// after inference, its raw and coordinate-remapped detections. The canvas
// and original images are shared read-only at the Plan level and never
// copied per crop.
type Crop struct {
	// Rect is the tile rectangle on the canvas.
	Rect geometry.Rect
	// Index is the 1-based row-major sequence number of the tile.
	Index int
	// Local holds the pixel data inside Rect on the canvas.
	Local image.Image

	// Raw is the detection in crop-local coordinates, as returned by the
	// model. Write-once, populated by inference.
	Raw detect.Detection
	// Remapped is the detection in canvas coordinates after RemapToCanvas,
	// and in original-image coordinates after ScaleToOriginal.
	Remapped detect.Detection
	// MasksDropped records that this crop's instance masks were discarded
	// due to a shape mismatch; boxes still flow into fusion.
	MasksDropped bool
}

// Plan is the output of one tiling run: the resized canvas, the shared
// original image, and the ordered crops covering the canvas.
type Plan struct {
	Grid     Grid
	Canvas   image.Image
	Original image.Image
	Crops    []*Crop
	// Skipped counts tiles discarded by the bounds check. Zero in any run
	// where the grid arithmetic holds.
	Skipped int
}

// Generate resizes the source image to the exact canvas size for cfg and
// extracts the overlapping tiles in row-major order.
func Generate(img image.Image, cfg Config) (*Plan, error) {
	if img == nil {
		return nil, errors.New("source image is nil")
	}
	bounds := img.Bounds()
	grid, err := NewGrid(bounds.Dx(), bounds.Dy(), cfg)
	if err != nil {
		return nil, err
	}

	canvas := imaging.Resize(img, grid.CanvasWidth, grid.CanvasHeight, imaging.Lanczos)

	plan := &Plan{
		Grid:     grid,
		Canvas:   canvas,
		Original: img,
		Crops:    make([]*Crop, 0, grid.Tiles()),
	}

	for row := 0; row < grid.StepsY; row++ {
		for col := 0; col < grid.StepsX; col++ {
			rect := grid.TileRect(row, col)
			// Exact canvas sizing should make this impossible; skip and keep
			// going rather than aborting the run.
			if !rect.Fits(grid.CanvasWidth, grid.CanvasHeight) {
				slog.Warn("tile exceeds canvas bounds, skipping",
					"tile", grid.TileIndex(row, col),
					"rect", rect.String(),
					"canvas_width", grid.CanvasWidth,
					"canvas_height", grid.CanvasHeight)
				plan.Skipped++
				continue
			}
			local := imaging.Crop(canvas, image.Rect(rect.X, rect.Y, rect.Right(), rect.Bottom()))
			plan.Crops = append(plan.Crops, &Crop{
				Rect:  rect,
				Index: grid.TileIndex(row, col),
				Local: local,
			})
		}
	}

	return plan, nil
}
