package geometry

import "math"

// Box is a detection bounding box in corner form (x1,y1,x2,y2), pixel
// coordinates relative to some frame (crop, canvas or original image).
type Box struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// NewBox constructs a box from its corner coordinates.
func NewBox(x1, y1, x2, y2 float64) Box {
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Translate shifts the box by (dx, dy) and returns the result.
func (b Box) Translate(dx, dy float64) Box {
	return Box{X1: b.X1 + dx, Y1: b.Y1 + dy, X2: b.X2 + dx, Y2: b.Y2 + dy}
}

// Scale multiplies x-coordinates by sx and y-coordinates by sy.
func (b Box) Scale(sx, sy float64) Box {
	return Box{X1: b.X1 * sx, Y1: b.Y1 * sy, X2: b.X2 * sx, Y2: b.Y2 * sy}
}

// Intersection returns the overlap area of two boxes, clamped to zero on
// each axis so disjoint boxes never produce a negative value.
func Intersection(a, b Box) float64 {
	w := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	h := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return w * h
}

// IoU computes Intersection over Union for two boxes.
func IoU(a, b Box) float64 {
	inter := Intersection(a, b)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// IoS computes Intersection over Smaller: the overlap area divided by the
// area of the smaller box. A small box fully inside a larger one scores 1.
func IoS(a, b Box) float64 {
	inter := Intersection(a, b)
	smaller := math.Min(a.Area(), b.Area())
	if smaller <= 0 {
		return 0
	}
	return inter / smaller
}
