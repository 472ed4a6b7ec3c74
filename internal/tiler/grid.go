package tiler

import (
	"math"

	"github.com/MeKo-Tech/mosaic/internal/geometry"
)

// Grid describes the overlapping tile layout for one source image. Offsets
// are exact integers on the canvas, and the canvas is sized so the last
// tile's right/bottom edge lands exactly on the canvas boundary.
type Grid struct {
	TileWidth  int
	TileHeight int
	StrideX    float64 // fraction of tile width advanced per column
	StrideY    float64 // fraction of tile height advanced per row
	StepsX     int     // tiles per row
	StepsY     int     // tiles per column
	CanvasWidth  int
	CanvasHeight int
	SourceWidth  int
	SourceHeight int
}

// NewGrid computes the tile layout for a source image of the given size.
// The source must be at least one tile large on each axis.
func NewGrid(srcWidth, srcHeight int, cfg Config) (Grid, error) {
	if err := cfg.ValidateFor(srcWidth, srcHeight); err != nil {
		return Grid{}, err
	}

	strideX := 1 - float64(cfg.OverlapX)/100
	strideY := 1 - float64(cfg.OverlapY)/100

	stepsX := axisSteps(srcWidth, cfg.TileWidth, strideX)
	stepsY := axisSteps(srcHeight, cfg.TileHeight, strideY)

	g := Grid{
		TileWidth:    cfg.TileWidth,
		TileHeight:   cfg.TileHeight,
		StrideX:      strideX,
		StrideY:      strideY,
		StepsX:       stepsX,
		StepsY:       stepsY,
		CanvasWidth:  canvasDim(stepsX, cfg.TileWidth, strideX),
		CanvasHeight: canvasDim(stepsY, cfg.TileHeight, strideY),
		SourceWidth:  srcWidth,
		SourceHeight: srcHeight,
	}
	return g, nil
}

// axisSteps returns the number of tiles along one axis so the grid spans the
// whole dimension at the requested overlap or more.
func axisSteps(dim, tile int, stride float64) int {
	steps := int(math.Ceil(float64(dim-tile)/(float64(tile)*stride))) + 1
	if steps < 1 {
		steps = 1
	}
	return steps
}

// canvasDim returns the exact canvas extent so the final tile edge coincides
// with the canvas boundary.
func canvasDim(steps, tile int, stride float64) int {
	return int(math.Round(float64(steps-1)*float64(tile)*stride + float64(tile)))
}

// Tiles returns the total number of tiles in the grid.
func (g Grid) Tiles() int { return g.StepsX * g.StepsY }

// TileRect returns the canvas rectangle of the tile at (row, col),
// zero-based.
func (g Grid) TileRect(row, col int) geometry.Rect {
	x := int(math.Round(float64(g.TileWidth) * float64(col) * g.StrideX))
	y := int(math.Round(float64(g.TileHeight) * float64(row) * g.StrideY))
	return geometry.NewRect(x, y, g.TileWidth, g.TileHeight)
}

// TileIndex returns the 1-based row-major sequence number of the tile at
// (row, col).
func (g Grid) TileIndex(row, col int) int {
	return row*g.StepsX + col + 1
}

// ScaleToOriginalX returns the x-axis factor mapping canvas coordinates back
// to the original image.
func (g Grid) ScaleToOriginalX() float64 {
	return float64(g.SourceWidth) / float64(g.CanvasWidth)
}

// ScaleToOriginalY returns the y-axis factor mapping canvas coordinates back
// to the original image.
func (g Grid) ScaleToOriginalY() float64 {
	return float64(g.SourceHeight) / float64(g.CanvasHeight)
}
