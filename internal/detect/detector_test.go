package detect

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/mosaic/internal/geometry"
	"github.com/MeKo-Tech/mosaic/internal/mask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectionValidate(t *testing.T) {
	det := Detection{
		Boxes:       []geometry.Box{geometry.NewBox(0, 0, 1, 1)},
		Classes:     []int{0},
		Confidences: []float64{0.9},
	}
	require.NoError(t, det.Validate())

	det.Confidences = nil
	require.Error(t, det.Validate())
}

func TestDetectionValidateMasks(t *testing.T) {
	det := Detection{
		Boxes:       []geometry.Box{geometry.NewBox(0, 0, 1, 1), geometry.NewBox(2, 2, 3, 3)},
		Classes:     []int{0, 1},
		Confidences: []float64{0.9, 0.8},
	}
	require.NoError(t, det.Validate(), "missing mask list is fine")

	det.Masks = []mask.Mask{mask.New(4, 4)}
	require.Error(t, det.Validate(), "partial mask list is not")

	det.Masks = append(det.Masks, mask.New(4, 4))
	require.NoError(t, det.Validate())
	assert.True(t, det.HasMasks())
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.ImageSize = 0
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.ConfThreshold = 1.5
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.IoUThreshold = -0.1
	assert.Error(t, p.Validate())
}

func TestParamsWantsClass(t *testing.T) {
	p := Params{}
	assert.True(t, p.WantsClass(7), "empty filter admits everything")

	p.ClassFilter = []int{0, 2}
	assert.True(t, p.WantsClass(2))
	assert.False(t, p.WantsClass(1))
}

func TestStaticDetector(t *testing.T) {
	want := Detection{
		Boxes:       []geometry.Box{geometry.NewBox(1, 2, 3, 4)},
		Classes:     []int{5},
		Confidences: []float64{0.6},
	}
	s := &StaticDetector{Detection: want}
	got, err := s.Infer(context.Background(), nil, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, s.Close())

	s = &StaticDetector{Err: errors.New("boom")}
	_, err = s.Infer(context.Background(), nil, DefaultParams())
	require.Error(t, err)
}

func TestDetectorFunc(t *testing.T) {
	called := false
	f := DetectorFunc(func(_ context.Context, _ image.Image, _ Params) (Detection, error) {
		called = true
		return Detection{}, nil
	})
	_, err := f.Infer(context.Background(), nil, DefaultParams())
	require.NoError(t, err)
	assert.True(t, called)
	require.NoError(t, f.Close())
}

func TestModelConfigValidate(t *testing.T) {
	cfg := DefaultModelConfig()
	require.Error(t, cfg.Validate(), "model path is required")

	cfg.ModelPath = "model.onnx"
	require.NoError(t, cfg.Validate())

	cfg.NumThreads = -1
	require.Error(t, cfg.Validate())
}
