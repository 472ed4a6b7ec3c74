package tiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid1500x1000(t *testing.T) {
	cfg := DefaultConfig() // 700x700, 25% overlap
	g, err := NewGrid(1500, 1000, cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, g.StepsX)
	assert.Equal(t, 2, g.StepsY)
	assert.Equal(t, 1750, g.CanvasWidth)
	assert.Equal(t, 1225, g.CanvasHeight)
	assert.Equal(t, 6, g.Tiles())

	first := g.TileRect(0, 0)
	assert.Equal(t, 0, first.X)
	assert.Equal(t, 0, first.Y)

	last := g.TileRect(1, 2)
	assert.Equal(t, 1050, last.X)
	assert.Equal(t, 525, last.Y)
	// the last tile edge lands exactly on the canvas boundary
	assert.Equal(t, g.CanvasWidth, last.Right())
	assert.Equal(t, g.CanvasHeight, last.Bottom())
}

func TestNewGridZeroOverlapPerfectGrid(t *testing.T) {
	cfg := Config{TileWidth: 100, TileHeight: 100}
	g, err := NewGrid(400, 300, cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, g.StepsX)
	assert.Equal(t, 3, g.StepsY)
	assert.Equal(t, 400, g.CanvasWidth)
	assert.Equal(t, 300, g.CanvasHeight)

	for row := 0; row < g.StepsY; row++ {
		for col := 0; col < g.StepsX; col++ {
			r := g.TileRect(row, col)
			assert.Equal(t, col*100, r.X)
			assert.Equal(t, row*100, r.Y)
			assert.True(t, r.Fits(g.CanvasWidth, g.CanvasHeight))
		}
	}
}

func TestNewGridSingleTile(t *testing.T) {
	cfg := Config{TileWidth: 256, TileHeight: 256, OverlapX: 25, OverlapY: 25}
	g, err := NewGrid(256, 256, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, g.StepsX)
	assert.Equal(t, 1, g.StepsY)
	assert.Equal(t, 256, g.CanvasWidth)
	assert.Equal(t, 256, g.CanvasHeight)
}

func TestTileIndexRowMajor(t *testing.T) {
	g := Grid{StepsX: 3, StepsY: 2}
	assert.Equal(t, 1, g.TileIndex(0, 0))
	assert.Equal(t, 3, g.TileIndex(0, 2))
	assert.Equal(t, 4, g.TileIndex(1, 0))
	assert.Equal(t, 6, g.TileIndex(1, 2))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero tile width", Config{TileWidth: 0, TileHeight: 100}},
		{"negative tile height", Config{TileWidth: 100, TileHeight: -1}},
		{"overlap 100", Config{TileWidth: 100, TileHeight: 100, OverlapX: 100}},
		{"negative overlap", Config{TileWidth: 100, TileHeight: 100, OverlapY: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.cfg.Validate())
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateForRejectsSmallImage(t *testing.T) {
	cfg := Config{TileWidth: 700, TileHeight: 700}
	require.Error(t, cfg.ValidateFor(500, 1000))
	require.Error(t, cfg.ValidateFor(1000, 500))
	require.Error(t, cfg.ValidateFor(0, 0))
	require.NoError(t, cfg.ValidateFor(700, 700))
}

func TestScaleToOriginalFactors(t *testing.T) {
	g := Grid{SourceWidth: 1500, SourceHeight: 1000, CanvasWidth: 1750, CanvasHeight: 1225}
	assert.InDelta(t, 1500.0/1750.0, g.ScaleToOriginalX(), 1e-9)
	assert.InDelta(t, 1000.0/1225.0, g.ScaleToOriginalY(), 1e-9)
}
