package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Tech/mosaic/internal/detect"
	"github.com/MeKo-Tech/mosaic/internal/fuse"
	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/MeKo-Tech/mosaic/internal/tiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	return img
}

// oneBoxPerCrop returns the same local-frame detection for every crop.
func oneBoxPerCrop(conf float64) detect.Detector {
	return detect.DetectorFunc(func(_ context.Context, _ image.Image, _ detect.Params) (detect.Detection, error) {
		return detect.Detection{
			Boxes:       []geometry.Box{geometry.NewBox(10, 10, 20, 20)},
			Classes:     []int{0},
			Confidences: []float64{conf},
		}, nil
	})
}

func TestBuilderRequiresDetector(t *testing.T) {
	_, err := NewBuilder().Build()
	require.Error(t, err)
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fusion.MatchMetric = "bogus"
	_, err := NewBuilder().WithDetector(&detect.StaticDetector{}).WithConfig(cfg).Build()
	require.ErrorIs(t, err, fuse.ErrUnknownMetric)

	cfg = DefaultConfig()
	cfg.Tiling.TileWidth = -1
	_, err = NewBuilder().WithDetector(&detect.StaticDetector{}).WithConfig(cfg).Build()
	require.Error(t, err)
}

func TestRunDisjointGrid(t *testing.T) {
	p, err := NewBuilder().
		WithDetector(oneBoxPerCrop(0.9)).
		WithTiling(tiler.Config{TileWidth: 100, TileHeight: 100}).
		WithFusion(fuse.Config{MatchMetric: "IOU", NMSThreshold: 0.5}).
		WithWorkers(2).
		Build()
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Close()) }()

	res, err := p.Run(context.Background(), testImage(400, 300))
	require.NoError(t, err)

	assert.Equal(t, 12, res.Crops)
	assert.Equal(t, 0, res.SkippedTiles)
	assert.Equal(t, 0, res.FailedCrops)
	// one detection per tile, all at distinct global offsets, none suppressed
	assert.Equal(t, 12, res.Len())

	// every fused box is the local box translated by some tile offset
	for _, b := range res.Boxes {
		assert.InDelta(t, 10.0, b.Width(), 1e-9)
		assert.InDelta(t, 10.0, b.Height(), 1e-9)
	}
}

func TestRunOverlappingCropsFuseDuplicates(t *testing.T) {
	// Tiles overlap 50%; the same object straddles the shared region so two
	// crops report it at the same canvas position.
	calls := atomic.Int64{}
	det := detect.DetectorFunc(func(_ context.Context, _ image.Image, _ detect.Params) (detect.Detection, error) {
		n := calls.Add(1)
		switch n {
		case 1:
			// tile at x=0: object at canvas (60..80) -> local (60..80)
			return detect.Detection{
				Boxes:       []geometry.Box{geometry.NewBox(60, 10, 80, 30)},
				Classes:     []int{0},
				Confidences: []float64{0.8},
			}, nil
		case 2:
			// tile at x=50: same object -> local (10..30)
			return detect.Detection{
				Boxes:       []geometry.Box{geometry.NewBox(10, 10, 30, 30)},
				Classes:     []int{0},
				Confidences: []float64{0.9},
			}, nil
		default:
			return detect.Detection{}, nil
		}
	})

	p, err := NewBuilder().
		WithDetector(det).
		WithTiling(tiler.Config{TileWidth: 100, TileHeight: 100, OverlapX: 50, OverlapY: 50}).
		WithFusion(fuse.Config{MatchMetric: "IOU", NMSThreshold: 0.5}).
		WithWorkers(1).
		Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), testImage(150, 100))
	require.NoError(t, err)

	require.Equal(t, 1, res.Len(), "duplicate across overlapping crops is fused")
	assert.InDelta(t, 0.9, res.Confidences[0], 1e-9)
	assert.Equal(t, geometry.NewBox(60, 10, 80, 30), res.Boxes[0])
}

func TestRunFailedCropContinues(t *testing.T) {
	calls := atomic.Int64{}
	det := detect.DetectorFunc(func(_ context.Context, _ image.Image, _ detect.Params) (detect.Detection, error) {
		if calls.Add(1) == 1 {
			return detect.Detection{}, errors.New("model exploded")
		}
		return detect.Detection{
			Boxes:       []geometry.Box{geometry.NewBox(10, 10, 20, 20)},
			Classes:     []int{0},
			Confidences: []float64{0.9},
		}, nil
	})

	p, err := NewBuilder().
		WithDetector(det).
		WithTiling(tiler.Config{TileWidth: 100, TileHeight: 100}).
		WithFusion(fuse.Config{MatchMetric: "IOU", NMSThreshold: 0.5}).
		WithWorkers(1).
		Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), testImage(200, 100))
	require.NoError(t, err, "one failed crop never aborts the run")
	assert.Equal(t, 1, res.FailedCrops)
	assert.Equal(t, 1, res.Len())
}

func TestRunRejectsMisalignedDetection(t *testing.T) {
	det := detect.DetectorFunc(func(_ context.Context, _ image.Image, _ detect.Params) (detect.Detection, error) {
		// boxes and confidences out of step
		return detect.Detection{
			Boxes:   []geometry.Box{geometry.NewBox(0, 0, 1, 1)},
			Classes: []int{0},
		}, nil
	})

	p, err := NewBuilder().
		WithDetector(det).
		WithTiling(tiler.Config{TileWidth: 100, TileHeight: 100}).
		Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), testImage(100, 100))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedCrops, "misaligned detections count as failures")
	assert.Equal(t, 0, res.Len())
}

func TestRunResizeToOriginal(t *testing.T) {
	calls := atomic.Int64{}
	det := detect.DetectorFunc(func(_ context.Context, _ image.Image, _ detect.Params) (detect.Detection, error) {
		if calls.Add(1) == 1 {
			return detect.Detection{
				Boxes:       []geometry.Box{geometry.NewBox(0, 0, 100, 100)},
				Classes:     []int{0},
				Confidences: []float64{0.9},
			}, nil
		}
		return detect.Detection{}, nil
	})

	cfg := tiler.DefaultConfig()
	cfg.ResizeToOriginal = true

	p, err := NewBuilder().
		WithDetector(det).
		WithTiling(cfg).
		WithWorkers(1).
		Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), testImage(1500, 1000))
	require.NoError(t, err)
	assert.Equal(t, 1750, res.CanvasWidth)
	assert.Equal(t, 1225, res.CanvasHeight)

	require.Equal(t, 1, res.Len())
	b := res.Boxes[0]
	assert.InDelta(t, 100.0*1500.0/1750.0, b.X2, 1e-9)
	assert.InDelta(t, 100.0*1000.0/1225.0, b.Y2, 1e-9)
}

func TestRunProgressCallback(t *testing.T) {
	p, err := NewBuilder().
		WithDetector(oneBoxPerCrop(0.9)).
		WithTiling(tiler.Config{TileWidth: 100, TileHeight: 100}).
		WithWorkers(3).
		Build()
	require.NoError(t, err)

	var events atomic.Int64
	p.OnProgress(func(done, total int) {
		events.Add(1)
		assert.Equal(t, 12, total)
	})

	_, err = p.Run(context.Background(), testImage(400, 300))
	require.NoError(t, err)
	assert.Equal(t, int64(12), events.Load())
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewBuilder().
		WithDetector(oneBoxPerCrop(0.9)).
		WithTiling(tiler.Config{TileWidth: 100, TileHeight: 100}).
		Build()
	require.NoError(t, err)

	_, err = p.Run(ctx, testImage(400, 300))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunNilImage(t *testing.T) {
	p, err := NewBuilder().WithDetector(&detect.StaticDetector{}).Build()
	require.NoError(t, err)
	_, err = p.Run(context.Background(), nil)
	require.Error(t, err)
}
