package tiler

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestGridCoversCanvas verifies that for any valid configuration the tile
// union spans the whole canvas on both axes.
func TestGridCoversCanvas(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tiles cover the canvas and never exceed it", prop.ForAll(
		func(srcW, srcH, tile, overlap int) bool {
			cfg := Config{TileWidth: tile, TileHeight: tile, OverlapX: overlap, OverlapY: overlap}
			g, err := NewGrid(srcW, srcH, cfg)
			if err != nil {
				return false
			}

			// Walk columns: each tile must start no later than the previous
			// tile's right edge, the first at 0, the last flush with the
			// canvas boundary. Same for rows.
			prevRight := 0
			for col := 0; col < g.StepsX; col++ {
				r := g.TileRect(0, col)
				if !r.Fits(g.CanvasWidth, g.CanvasHeight) {
					return false
				}
				if r.X > prevRight {
					return false // gap in coverage
				}
				prevRight = r.Right()
			}
			if prevRight != g.CanvasWidth {
				return false
			}

			prevBottom := 0
			for row := 0; row < g.StepsY; row++ {
				r := g.TileRect(row, 0)
				if !r.Fits(g.CanvasWidth, g.CanvasHeight) {
					return false
				}
				if r.Y > prevBottom {
					return false
				}
				prevBottom = r.Bottom()
			}
			return prevBottom == g.CanvasHeight
		},
		gen.IntRange(64, 2000),
		gen.IntRange(64, 2000),
		gen.IntRange(32, 64),
		gen.IntRange(0, 90),
	))

	properties.TestingRun(t)
}

// TestGridOffsetsMonotonic verifies offsets strictly increase along each
// axis, so the row-major tile order is well defined.
func TestGridOffsetsMonotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tile offsets strictly increase", prop.ForAll(
		func(srcW, tile, overlap int) bool {
			cfg := Config{TileWidth: tile, TileHeight: tile, OverlapX: overlap, OverlapY: overlap}
			g, err := NewGrid(srcW, srcW, cfg)
			if err != nil {
				return false
			}
			for col := 1; col < g.StepsX; col++ {
				if g.TileRect(0, col).X <= g.TileRect(0, col-1).X {
					return false
				}
			}
			return true
		},
		gen.IntRange(128, 4000),
		gen.IntRange(64, 128),
		gen.IntRange(0, 75),
	))

	properties.TestingRun(t)
}
