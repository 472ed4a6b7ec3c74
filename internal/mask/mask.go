// Package mask provides binary instance masks and the pixel-level overlap
// metrics used during mask-aware fusion.
package mask

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const on = 255

// Mask is a binary per-pixel map identifying the pixels that belong to one
// detected object instance. Pixels are strictly {0, 255}; resizing always
// uses nearest-neighbor so the mask stays binary.
type Mask struct {
	gray *image.Gray
}

// New creates an empty (all-zero) mask of the given size.
func New(width, height int) Mask {
	return Mask{gray: image.NewGray(image.Rect(0, 0, width, height))}
}

// FromGray wraps a grayscale image as a mask, normalizing every non-zero
// pixel to 255.
func FromGray(g *image.Gray) (Mask, error) {
	if g == nil {
		return Mask{}, errors.New("nil gray image")
	}
	m := Mask{gray: g}
	for i, v := range g.Pix {
		if v != 0 {
			g.Pix[i] = on
		}
	}
	return m, nil
}

// FromBits builds a mask from a row-major boolean grid of length
// width*height.
func FromBits(width, height int, bits []bool) (Mask, error) {
	if len(bits) != width*height {
		return Mask{}, errors.New("bits length does not match mask dimensions")
	}
	m := New(width, height)
	for i, b := range bits {
		if b {
			m.gray.Pix[i] = on
		}
	}
	return m, nil
}

// Empty reports whether the mask carries no pixel data at all.
func (m Mask) Empty() bool { return m.gray == nil }

// Width returns the mask width in pixels, or 0 for an empty mask.
func (m Mask) Width() int {
	if m.gray == nil {
		return 0
	}
	return m.gray.Rect.Dx()
}

// Height returns the mask height in pixels, or 0 for an empty mask.
func (m Mask) Height() int {
	if m.gray == nil {
		return 0
	}
	return m.gray.Rect.Dy()
}

// At reports whether the pixel at (x, y) belongs to the instance.
func (m Mask) At(x, y int) bool {
	if m.gray == nil {
		return false
	}
	return m.gray.GrayAt(x+m.gray.Rect.Min.X, y+m.gray.Rect.Min.Y).Y != 0
}

// Set marks or clears the pixel at (x, y).
func (m Mask) Set(x, y int, v bool) {
	if m.gray == nil {
		return
	}
	var p uint8
	if v {
		p = on
	}
	m.gray.SetGray(x+m.gray.Rect.Min.X, y+m.gray.Rect.Min.Y, color.Gray{Y: p})
}

// Area returns the number of set pixels.
func (m Mask) Area() int {
	if m.gray == nil {
		return 0
	}
	n := 0
	for _, v := range m.gray.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Resize scales the mask to the given dimensions using nearest-neighbor
// interpolation, preserving the binary {0,255} semantics.
func (m Mask) Resize(width, height int) Mask {
	if m.gray == nil || width <= 0 || height <= 0 {
		return Mask{}
	}
	resized := imaging.Resize(m.gray, width, height, imaging.NearestNeighbor)
	out := New(width, height)
	// imaging returns NRGBA; fold back to a binary gray plane
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if resized.NRGBAAt(x, y).R != 0 {
				out.gray.Pix[y*out.gray.Stride+x] = on
			}
		}
	}
	return out
}

// Intersection returns the number of pixels set in both masks. Masks of
// different dimensions are treated as disjoint.
func Intersection(a, b Mask) int {
	if a.gray == nil || b.gray == nil {
		return 0
	}
	if a.Width() != b.Width() || a.Height() != b.Height() {
		return 0
	}
	n := 0
	h, w := a.Height(), a.Width()
	for y := 0; y < h; y++ {
		ra := a.gray.Pix[y*a.gray.Stride : y*a.gray.Stride+w]
		rb := b.gray.Pix[y*b.gray.Stride : y*b.gray.Stride+w]
		for x := 0; x < w; x++ {
			if ra[x] != 0 && rb[x] != 0 {
				n++
			}
		}
	}
	return n
}

// IoU computes pixel-level Intersection over Union for two masks.
func IoU(a, b Mask) float64 {
	inter := Intersection(a, b)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// IoS computes pixel-level Intersection over Smaller for two masks.
func IoS(a, b Mask) float64 {
	inter := Intersection(a, b)
	smaller := min(a.Area(), b.Area())
	if smaller <= 0 {
		return 0
	}
	return float64(inter) / float64(smaller)
}
