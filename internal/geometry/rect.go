package geometry

import "fmt"

// Rect is an integer rectangle with top-left origin, used for tile
// placement on the canvas.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// NewRect constructs a rectangle from its top-left corner and size.
func NewRect(x, y, width, height int) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Right returns the exclusive right edge coordinate.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge coordinate.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Area returns the rectangle area in pixels.
func (r Rect) Area() int { return r.Width * r.Height }

// Fits reports whether the rectangle lies entirely within a canvas of the
// given dimensions.
func (r Rect) Fits(canvasWidth, canvasHeight int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= canvasWidth && r.Bottom() <= canvasHeight
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}
