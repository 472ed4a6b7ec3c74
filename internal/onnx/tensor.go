package onnx

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/mosaic/internal/mempool"
	"github.com/disintegration/imaging"
)

// Tensor is a float32 tensor prepared for ONNX input. Data layout is
// row-major NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64 // [N, C, H, W]

	pooled bool
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
// data must be length C*H*W in NCHW order.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if expected := c * h * w; len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// FromImage converts an image to a [1, 3, H, W] tensor: RGB channels,
// pixel values scaled to 0-1, channel-planar order. The tensor's backing
// buffer comes from the float32 pool; the caller must Release it.
func FromImage(img image.Image) (Tensor, error) {
	if img == nil {
		return Tensor{}, errors.New("input image is nil")
	}

	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return Tensor{}, errors.New("invalid image dimensions")
	}

	plane := width * height
	data := mempool.GetFloat32(3 * plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := nrgba.PixOffset(x, y)
			idx := y*width + x
			data[idx] = float32(nrgba.Pix[i]) / 255.0
			data[plane+idx] = float32(nrgba.Pix[i+1]) / 255.0
			data[2*plane+idx] = float32(nrgba.Pix[i+2]) / 255.0
		}
	}

	return Tensor{
		Data:   data,
		Shape:  []int64{1, 3, int64(height), int64(width)},
		pooled: true,
	}, nil
}

// Release returns a pooled tensor's buffer to the pool. No-op for tensors
// backed by caller-owned slices.
func (t *Tensor) Release() {
	if t.pooled {
		mempool.PutFloat32(t.Data)
		t.Data = nil
		t.pooled = false
	}
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// Verify checks the data length matches the NCHW shape.
func (t Tensor) Verify() error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	expected := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}
